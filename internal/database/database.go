// Package database provides SQLite storage for the agent's registry:
// targets, deployment history, users, sessions, and the audit trail.
package database

import (
	"database/sql"
	"os"
	"path/filepath"

	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection with migration management.
type DB struct {
	*sql.DB
}

// New opens the agent database, creating the parent directory when
// needed. Deploy runs write history rows from their own goroutines
// while API handlers read, so the connection uses WAL journaling and a
// busy timeout instead of failing on a locked database.
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Migrate brings the schema up to date.
func (db *DB) Migrate() error {
	return runMigrations(db.DB)
}
