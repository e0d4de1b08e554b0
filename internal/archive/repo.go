package archive

import (
	"fmt"
	"time"
)

// Entry is one archived trail line.
type Entry struct {
	ID        int64     `json:"id"`
	UserKey   string    `json:"user"`
	Message   string    `json:"message"`
	Stamped   string    `json:"stamped"`
	CreatedAt time.Time `json:"created_at"`
}

// Insert appends one archived entry for a user.
func (db *DB) Insert(userKey, message, stamped string) error {
	_, err := db.conn.Exec(
		`INSERT INTO activity (user_key, message, stamped) VALUES (?, ?, ?)`,
		userKey, message, stamped,
	)
	if err != nil {
		return fmt.Errorf("archive: insert: %w", err)
	}
	return nil
}

// List returns a user's archived entries, newest first.
func (db *DB) List(userKey string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.conn.Query(`
		SELECT id, user_key, message, stamped, created_at
		FROM activity
		WHERE user_key = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, userKey, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search returns a user's archived entries whose message contains the
// query substring, newest first. The haystack is short stamped strings, so
// a LIKE scan is enough.
func (db *DB) Search(userKey, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, user_key, message, stamped, created_at
		FROM activity
		WHERE user_key = ? AND message LIKE '%' || ? || '%'
		ORDER BY id DESC
		LIMIT ?`, userKey, query, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Count returns the total number of archived entries for a user.
func (db *DB) Count(userKey string) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT count(*) FROM activity WHERE user_key = ?`, userKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}

// Purge removes every archived entry for a user.
func (db *DB) Purge(userKey string) error {
	if _, err := db.conn.Exec(`DELETE FROM activity WHERE user_key = ?`, userKey); err != nil {
		return fmt.Errorf("archive: purge: %w", err)
	}
	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows rowScanner) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserKey, &e.Message, &e.Stamped, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
