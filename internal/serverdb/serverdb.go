// Package serverdb is the server-side store for users, API keys, and the
// finance entities (transactions, categories, budgets). All row access is
// scoped by user id, and updates/deletes are guarded by an updated_at
// compare-and-swap.
package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrNotFound = errors.New("not found")
	// ErrChangedElsewhere is the optimistic-concurrency failure: no row
	// matched the (id, updated_at) compare-and-swap.
	ErrChangedElsewhere = errors.New("changed elsewhere")
)

// ValidationError marks a business-rule rejection that maps to a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ServerDB wraps the server database connection.
type ServerDB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the server database at path.
func Open(path string) (*ServerDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open server db: %w", err)
	}

	// Single connection: pragmas are per-connection, and an in-memory
	// database only exists on the connection that created it.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=1000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &ServerDB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenConn wraps an existing connection. Used by tests with in-memory databases.
func OpenConn(conn *sql.DB) (*ServerDB, error) {
	db := &ServerDB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *ServerDB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS api_keys (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			key_hash   TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			last_used  TEXT
		);
		CREATE TABLE IF NOT EXISTS categories (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			name       TEXT NOT NULL,
			type       TEXT NOT NULL DEFAULT 'expense',
			color      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, name)
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id),
			account_id     TEXT NOT NULL DEFAULT '',
			category_id    TEXT NOT NULL DEFAULT '',
			amount         TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			payment_method TEXT NOT NULL DEFAULT '',
			date           TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date);
		CREATE TABLE IF NOT EXISTS budgets (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			category_id TEXT NOT NULL,
			month       TEXT NOT NULL,
			limit_amount TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			UNIQUE(user_id, category_id, month)
		);
	`)
	return err
}

// Close closes the underlying connection.
func (db *ServerDB) Close() error {
	return db.conn.Close()
}

// now returns the canonical timestamp string used for created_at/updated_at.
// The exact text doubles as the optimistic-concurrency version token, so it
// must round-trip through clients unchanged.
func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
