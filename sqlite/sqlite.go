// Package sqlite provides SQLite-based storage implementations for leadscout services.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set busy timeout to wait 5 seconds before failing on lock contention.
	// This prevents immediate "database is locked" errors.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable WAL mode for file-based databases for better write performance.
	// WAL is ~7x faster for writes and allows concurrent reads during writes.
	// Trade-off: creates additional -wal and -shm files alongside the database.
	// Note: WAL mode is not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Enable foreign key constraints
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.db = conn

	// Create schema
	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS domains (
			name TEXT PRIMARY KEY,
			sources TEXT NOT NULL DEFAULT '[]',
			signals TEXT NOT NULL DEFAULT '{}',
			vet_state TEXT NOT NULL,
			decision TEXT NOT NULL DEFAULT '',
			vet_stage TEXT NOT NULL DEFAULT '',
			vet_score REAL NOT NULL DEFAULT 0,
			vet_rationale TEXT NOT NULL DEFAULT '',
			crawl_status TEXT NOT NULL,
			crawl_pages INTEGER NOT NULL DEFAULT 0,
			failure_reason TEXT NOT NULL DEFAULT '',
			discovered_at TEXT NOT NULL,
			vetted_at TEXT NOT NULL DEFAULT '',
			crawled_at TEXT NOT NULL DEFAULT '',
			extracted_at TEXT NOT NULL DEFAULT '',
			embedded_at TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS hits (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			url TEXT NOT NULL,
			query TEXT NOT NULL DEFAULT '',
			engine TEXT NOT NULL DEFAULT '',
			rank INTEGER NOT NULL DEFAULT 0,
			snippet TEXT NOT NULL DEFAULT '',
			discovered_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_hits_domain ON hits(domain);

		CREATE TABLE IF NOT EXISTS soft_signals (
			domain TEXT PRIMARY KEY,
			signals TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS vettings (
			domain TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			stage TEXT NOT NULL,
			decision TEXT NOT NULL,
			rationale TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (domain, content_hash, stage)
		);

		CREATE TABLE IF NOT EXISTS dedups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			candidate TEXT NOT NULL,
			matched TEXT NOT NULL DEFAULT '',
			pattern_score REAL NOT NULL DEFAULT 0,
			homepage_similarity REAL NOT NULL DEFAULT 0,
			decision TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_dedups_candidate ON dedups(candidate);

		CREATE TABLE IF NOT EXISTS homepage_features (
			domain TEXT PRIMARY KEY,
			features TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS dedup_signatures (
			domain TEXT PRIMARY KEY,
			brand TEXT NOT NULL DEFAULT '',
			path_shapes TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS pages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			domain TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			depth INTEGER NOT NULL DEFAULT 0,
			content_hash TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			fetched_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pages_domain_url ON pages(domain, url);

		CREATE TABLE IF NOT EXISTS crawl_states (
			domain TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS extractions (
			domain TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			extracted_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS vectors (
			collection TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			id TEXT NOT NULL,
			source_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			brand TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			section TEXT NOT NULL DEFAULT '',
			embedding BLOB NOT NULL,
			PRIMARY KEY (collection, content_hash)
		);

		CREATE INDEX IF NOT EXISTS idx_vectors_domain ON vectors(collection, domain);

		CREATE TABLE IF NOT EXISTS embedded_sets (
			domain TEXT PRIMARY KEY,
			hashes TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			progress TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			started_at TEXT NOT NULL DEFAULT '',
			finished_at TEXT NOT NULL DEFAULT ''
		);
	`

	_, err := db.db.Exec(schema)
	return err
}
