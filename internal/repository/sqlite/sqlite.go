// Package sqlite implements the repository stores on top of SQLite.
//
// It is a small hand-written object mapper: each entity store knows its own
// tables, hydrates nested entities by following foreign keys and association
// tables, and turns an in-memory entity back into the minimal set of row
// writes (see reconcile.go).
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no cgo, no C compiler, cross-compiles
// like any other Go package. ":memory:" gives every test its own database.
//
// CONNECTION MODEL:
// The pool is capped at ONE open connection and every operation runs under
// DB.mu. A save is a sequence of statements (primary row, then association
// rows); two of those sequences must never interleave on the connection, so
// the whole sequence is the critical section, not each statement.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB is the storage gateway. Entity stores are obtained from it with
// Allergies(), Categories(), Ingredients(), Recipes() and Users().
type DB struct {
	conn *sql.DB
	mu   sync.Mutex

	// shallowMeals makes user loads hydrate meals as recipe id, name and
	// instructions only (no contents). Fixed for the lifetime of the DB.
	shallowMeals bool
}

// Option configures a DB at construction time.
type Option func(*DB)

// WithShallowMeals switches user loading to the light meal-plan variant.
// Recipes on User.Meals() then have no contents.
func WithShallowMeals() Option {
	return func(db *DB) { db.shallowMeals = true }
}

// New opens the database at dbPath and creates the schema if needed.
//
// dbPath examples:
//   - "data/pantry.db" → file-based database
//   - ":memory:"       → in-memory database, gone on Close (tests)
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection, kept forever. PRAGMAs below are per-connection, and an
	// in-memory database only exists on the connection that created it.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Remove relies on them to
	// refuse deleting rows that are still referenced.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is still usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.read(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, "SELECT 1")
		return err
	})
}

// migrate creates the nine tables. CREATE ... IF NOT EXISTS makes it safe to
// run on every start.
//
// Association tables have composite primary keys and no ON DELETE actions:
// deleting a row that is still referenced fails, and Remove reports that as
// apperror.ErrDependents.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS ingredient_categories (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS allergies (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS ingredients (
			id          INTEGER PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			category_id INTEGER NOT NULL REFERENCES ingredient_categories(id)
		);

		CREATE TABLE IF NOT EXISTS ingredient_allergies (
			ingredient_id INTEGER NOT NULL REFERENCES ingredients(id),
			allergy_id    INTEGER NOT NULL REFERENCES allergies(id),
			PRIMARY KEY (ingredient_id, allergy_id)
		);
		CREATE INDEX IF NOT EXISTS idx_ingredient_allergies_allergy ON ingredient_allergies(allergy_id);
	`)
	if err != nil {
		return fmt.Errorf("creating ingredient tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recipes (
			id           INTEGER PRIMARY KEY,
			name         TEXT NOT NULL UNIQUE,
			instructions TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS recipe_contents (
			recipe_id     INTEGER NOT NULL REFERENCES recipes(id),
			ingredient_id INTEGER NOT NULL REFERENCES ingredients(id),
			amount        REAL NOT NULL DEFAULT 0 CHECK (amount >= 0),
			units         TEXT DEFAULT NULL,
			PRIMARY KEY (recipe_id, ingredient_id)
		);
		CREATE INDEX IF NOT EXISTS idx_recipe_contents_ingredient ON recipe_contents(ingredient_id);
	`)
	if err != nil {
		return fmt.Errorf("creating recipe tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin      INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS user_allergies (
			user_id    INTEGER NOT NULL REFERENCES users(id),
			allergy_id INTEGER NOT NULL REFERENCES allergies(id),
			PRIMARY KEY (user_id, allergy_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_allergies_allergy ON user_allergies(allergy_id);

		CREATE TABLE IF NOT EXISTS user_meals (
			user_id   INTEGER NOT NULL REFERENCES users(id),
			recipe_id INTEGER NOT NULL REFERENCES recipes(id),
			PRIMARY KEY (user_id, recipe_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_meals_recipe ON user_meals(recipe_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user tables: %w", err)
	}

	return nil
}

// querier is what both *sql.DB and *sql.Tx offer. Store internals take a
// querier so the same code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// read runs a sequence of read statements as one critical section.
//
// fn must not call back into exported DB or store methods: db.mu is not
// re-entrant.
func (db *DB) read(ctx context.Context, fn func(q querier) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.conn)
}

// unitOfWork runs fn inside a transaction and commits it. Any error returned
// by fn, and any panic, rolls the transaction back explicitly so a failed
// save leaves nothing behind.
func (db *DB) unitOfWork(ctx context.Context, fn func(q querier) error) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
