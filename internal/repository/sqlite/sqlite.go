// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure-Go translation of SQLite: no CGo, no C
// compiler, cross-compiles everywhere Go does. The database is a single file
// (or ":memory:" for tests), which matches this app's single-binary
// deployment model.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces. The server owns the lifecycle: New creates it, Close releases
// the file lock and flushes the WAL.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Surface bad paths/permissions now instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress; the
	// screenshot orchestrator writes while list requests are being served.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id      INTEGER NOT NULL UNIQUE,
			login          TEXT NOT NULL,
			email          TEXT NOT NULL DEFAULT '',
			avatar_url     TEXT NOT NULL DEFAULT '',
			api_token_hash TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Tags on a bookmark are stored as a JSON array in a TEXT column. The
	// tag filter matches the quoted entry with LIKE, which is enough at the
	// scale of a personal bookmark collection; the tags table below carries
	// the denormalized counters for the popularity listing.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS bookmarks (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL REFERENCES users(id),
			url                TEXT NOT NULL,
			title              TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			tags               TEXT NOT NULL DEFAULT '[]',
			folder_id          TEXT,
			screenshot_url     TEXT,
			screenshot_path    TEXT,
			screenshot_status  TEXT NOT NULL DEFAULT 'pending',
			screenshot_error   TEXT,
			screenshot_retries INTEGER NOT NULL DEFAULT 0,
			created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_user_id ON bookmarks(user_id);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_screenshot_status ON bookmarks(screenshot_status);
	`)
	if err != nil {
		return fmt.Errorf("creating bookmarks table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tags (
			slug       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			count      INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tags table: %w", err)
	}

	return nil
}
