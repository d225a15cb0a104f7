package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/sakif/pantry/internal/repository"
)

// Predicates is a set of column = value conditions joined with AND.
// An empty set matches every row.
type Predicates map[string]any

// OrderBy is one ORDER BY term for FetchRows.
type OrderBy struct {
	Column string
	Desc   bool
}

// Row is one fetched row keyed by column name.
//
// Values are whatever the driver hands back: int64 for INTEGER, float64 for
// REAL, string for TEXT and nil for NULL. The accessors smooth over the
// differences so callers don't type-switch.
type Row map[string]any

func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	}
	return 0
}

// String returns "" for NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Bool(col string) bool { return r.Int64(col) != 0 }

// RowExists reports whether any row of table matches where.
func (db *DB) RowExists(ctx context.Context, table string, where Predicates) (bool, error) {
	var ok bool
	err := db.read(ctx, func(q querier) error {
		var err error
		ok, err = rowExists(ctx, q, table, where)
		return err
	})
	return ok, err
}

// FetchRows returns every row of table matching where, in the given order.
// The result is never nil.
func (db *DB) FetchRows(ctx context.Context, table string, where Predicates, order ...OrderBy) ([]Row, error) {
	var rows []Row
	err := db.read(ctx, func(q querier) error {
		var err error
		rows, err = fetchRows(ctx, q, table, where, order...)
		return err
	})
	return rows, err
}

func rowExists(ctx context.Context, q querier, table string, where Predicates) (bool, error) {
	clause, args := whereClause(where)
	query := "SELECT EXISTS (SELECT 1 FROM " + quoteIdent(table) + clause + ")"

	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("sqlite: checking %s exists: %w", table, err)
	}
	return n != 0, nil
}

func fetchRows(ctx context.Context, q querier, table string, where Predicates, order ...OrderBy) ([]Row, error) {
	clause, args := whereClause(where)
	query := "SELECT * FROM " + quoteIdent(table) + clause + orderClause(order)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning %s: %w", table, err)
	}
	return out, nil
}

// scanRows drains rows into column-keyed maps. The result is fully
// materialized so the caller can issue another query straight away; with a
// single connection an open *sql.Rows would block it.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// whereClause renders predicates with keys in sorted order, so the same
// predicates always produce the same SQL text.
func whereClause(where Predicates) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	cols := make([]string, 0, len(where))
	for c := range where {
		cols = append(cols, c)
	}
	slices.Sort(cols)

	terms := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		terms[i] = quoteIdent(c) + " = ?"
		args[i] = where[c]
	}
	return " WHERE " + strings.Join(terms, " AND "), args
}

func orderClause(order []OrderBy) string {
	if len(order) == 0 {
		return ""
	}
	terms := make([]string, len(order))
	for i, o := range order {
		terms[i] = quoteIdent(o.Column)
		if o.Desc {
			terms[i] += " DESC"
		}
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

// quoteIdent makes a table or column name safe to splice into SQL. Values
// always go through ? placeholders; identifiers can't, so they are quoted
// with embedded quotes doubled.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// selectorPredicates turns a selector into a lookup on the id or name column.
func selectorPredicates(sel repository.Selector) Predicates {
	if sel.ID > 0 {
		return Predicates{"id": sel.ID}
	}
	return Predicates{"name": strings.TrimSpace(sel.Name)}
}

// resolve finds the primary row a selector points at: existence first, then
// the row itself.
func resolve(ctx context.Context, q querier, table string, sel repository.Selector) (Row, bool, error) {
	if err := sel.Validate(); err != nil {
		return nil, false, err
	}
	where := selectorPredicates(sel)

	ok, err := rowExists(ctx, q, table, where)
	if err != nil || !ok {
		return nil, false, err
	}
	rows, err := fetchRows(ctx, q, table, where)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// execEach runs one prepared statement once per argument set and returns the
// total number of rows affected.
func execEach(ctx context.Context, q querier, query string, argSets [][]any) (int64, error) {
	if len(argSets) == 0 {
		return 0, nil
	}
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for _, args := range argSets {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
