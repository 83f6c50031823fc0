// Package index mirrors the registry document into SQLite: one row per entity,
// one row per classified reference, with optional FTS5 search over purposes
// and keywords.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
	category      TEXT NOT NULL,
	id            TEXT NOT NULL,
	path          TEXT NOT NULL DEFAULT '',
	layer         TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL DEFAULT '',
	purpose       TEXT NOT NULL DEFAULT '',
	keywords      TEXT NOT NULL DEFAULT '[]',
	lifecycle     TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL DEFAULT '',
	last_verified TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (category, id)
);

CREATE TABLE IF NOT EXISTS edges (
	source_category TEXT NOT NULL,
	source          TEXT NOT NULL,
	target          TEXT NOT NULL,
	kind            TEXT NOT NULL CHECK (kind IN ('internal', 'external', 'planned')),
	UNIQUE(source_category, source, target, kind)
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_id ON entities(id);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
`

// DB wraps a sql.DB with mirror-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
