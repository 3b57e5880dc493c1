// Package sqlite implements the repository interfaces on SQLite via
// database/sql and the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (":memory:" for tests), configures the
// connection and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// A single pooled connection keeps the PRAGMAs below in effect for
	// every query and gives ":memory:" databases one shared instance.
	// SQLite allows one writer at a time regardless.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads during a write; SQLite's default journal
	// mode locks the whole file.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default; the social_links to users cascade depends on it.
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

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent across restarts.
//
// Uniqueness rules carried by the schema:
//   - users.email    unique when present (NULLs don't collide in SQLite)
//   - users.username unique
//   - social_links (provider, provider_user_id) unique
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT UNIQUE,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			name          TEXT NOT NULL DEFAULT '',
			image_url     TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS social_links (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider         TEXT NOT NULL,
			provider_user_id TEXT NOT NULL,
			email            TEXT NOT NULL DEFAULT '',
			username         TEXT NOT NULL DEFAULT '',
			name             TEXT NOT NULL DEFAULT '',
			image_url        TEXT NOT NULL DEFAULT '',
			access_token     TEXT NOT NULL DEFAULT '',
			refresh_token    TEXT NOT NULL DEFAULT '',
			token_expiry     DATETIME,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(provider, provider_user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_social_links_user_id ON social_links(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating social_links table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// The modernc driver surfaces constraint errors as plain errors with the
// standard SQLite message, so we match on it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
