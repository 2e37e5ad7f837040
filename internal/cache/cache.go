// Package cache is the client-side persistent note cache used for optimistic
// reads and offline fallback.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS note_cache (
	id         TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB is a SQLite-backed note cache. Entries are overwritten per key.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the cache database.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the cached note for id. ok is false when nothing is cached.
func (db *DB) Get(ctx context.Context, id string) (models.Note, bool, error) {
	var payload string
	err := db.conn.QueryRowContext(ctx, `SELECT payload FROM note_cache WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, false, nil
	}
	if err != nil {
		return models.Note{}, false, fmt.Errorf("cache: get %s: %w", id, err)
	}
	var n models.Note
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return models.Note{}, false, fmt.Errorf("cache: decode %s: %w", id, err)
	}
	return n, true, nil
}

// Set stores n under its id, replacing any previous snapshot.
func (db *DB) Set(ctx context.Context, n models.Note) error {
	if n.ID == "" {
		return fmt.Errorf("cache: set: empty id")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", n.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO note_cache (id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, n.ID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", n.ID, err)
	}
	return nil
}

// Delete removes the snapshot for id. Missing entries are not an error.
func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM note_cache WHERE id = ?`, id); err != nil {
		return fmt.Errorf("cache: delete %s: %w", id, err)
	}
	return nil
}

// All returns every cached note, oldest write first. Used to seed the tree
// when the remote service is unreachable.
func (db *DB) All(ctx context.Context) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT payload FROM note_cache ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("cache: all: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var n models.Note
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return nil, fmt.Errorf("cache: decode: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
