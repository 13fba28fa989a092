package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// New opens the SQLite database at the given path and applies the
// connection pragmas the pipeline relies on.
func New(path string) (*DB, error) {
	// Writers from the queue workers and the ingestion tasks overlap, so
	// WAL mode plus a busy timeout keeps them from tripping over each other.
	// Pragmas ride the DSN because they are per-connection settings and the
	// pool opens connections lazily.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}
