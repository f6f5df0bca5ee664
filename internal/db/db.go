package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dbFile = "local.db"

// DB wraps the per-device durable store. It holds exactly two collections:
// the mutation outbox and the read-through query cache.
type DB struct {
	conn *sql.DB
}

// DefaultDir returns the default data directory for the local store,
// honoring EXPENSES_DATA_DIR.
func DefaultDir() (string, error) {
	if v := os.Getenv("EXPENSES_DATA_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "expenses"), nil
}

// Open opens (creating if necessary) the local store in baseDir.
func Open(baseDir string) (*DB, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(baseDir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pragmas are per-connection; cap the pool so they hold everywhere.
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenConn wraps an existing connection. Used by tests with in-memory databases.
func OpenConn(conn *sql.DB) (*DB, error) {
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS outbox (
			id            TEXT PRIMARY KEY,
			type          TEXT NOT NULL,
			payload       JSON NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_error    TEXT,
			attempts      INTEGER NOT NULL DEFAULT 0,
			next_retry_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status);
		CREATE TABLE IF NOT EXISTS cache (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      JSON NOT NULL,
			fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, key)
		);
	`)
	return err
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
