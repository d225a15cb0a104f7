package sqlite

import (
	"errors"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// The driver reports extended result codes, e.g. 787 for a foreign key
// failure. Older builds may only give the primary code (19, CONSTRAINT), so
// the message text is the fallback.

func constraintCode(err error) (int, string, bool) {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return 0, "", false
	}
	return se.Code(), se.Error(), true
}

func isForeignKeyViolation(err error) bool {
	code, msg, ok := constraintCode(err)
	if !ok {
		return false
	}
	if code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "FOREIGN KEY")
}

func isUniqueViolation(err error) bool {
	code, msg, ok := constraintCode(err)
	if !ok {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE")
}
