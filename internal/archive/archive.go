// Package archive provides the SQLite-backed activity history. The
// in-memory trail keeps only the 100 most recent entries per user; the
// archive keeps everything, best-effort, and feeds report exports and
// history search. It is the local stand-in for the reference
// implementation's remote activity backend.
package archive

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS activity (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_key   TEXT NOT NULL,
	message    TEXT NOT NULL,
	stamped    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_activity_user ON activity(user_key, id DESC);
`

// DB wraps a sql.DB with archive-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("archive: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("archive: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
