package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID        string
	Title     string
	ParentID  string
	Shared    models.Shared
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ListOptions filters and pages ListNotes. A zero Limit returns every row.
type ListOptions struct {
	Limit    int
	Offset   int
	ParentID string
	// Roots restricts the listing to notes without a parent.
	Roots bool
	// Sort is one of "title", "updated_at" (newest first) or "id".
	Sort string
}

var sortColumns = map[string]string{
	"":           "title COLLATE NOCASE, id",
	"title":      "title COLLATE NOCASE, id",
	"updated_at": "updated_at DESC, id",
	"id":         "id",
}

// KnownSort reports whether ListNotes accepts sort.
func KnownSort(sort string) bool {
	_, ok := sortColumns[sort]
	return ok
}

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (id, title, pid, shared, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			pid        = excluded.pid,
			shared     = excluded.shared,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, n.ParentID, int(n.Shared), n.Checksum, body, n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n.ID, n.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry.
func (db *DB) DeleteNote(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns the metadata row of a note.
func (db *DB) GetNote(id string) (*NoteRow, error) {
	var (
		r      NoteRow
		shared int
	)
	err := db.conn.QueryRow(`
		SELECT id, title, pid, shared, checksum, updated_at FROM notes WHERE id = ?
	`, id).Scan(&r.ID, &r.Title, &r.ParentID, &shared, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	r.Shared = models.Shared(shared)
	return &r, nil
}

// ListNotes returns one page of notes and the total matching count.
func (db *DB) ListNotes(opts ListOptions) ([]NoteRow, int, error) {
	order, ok := sortColumns[opts.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q", opts.Sort)
	}

	where := ""
	var args []any
	switch {
	case opts.Roots:
		where = "WHERE pid = ''"
	case opts.ParentID != "":
		where = "WHERE pid = ?"
		args = append(args, opts.ParentID)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	q := `SELECT id, title, pid, shared, checksum, updated_at FROM notes ` + where + ` ORDER BY ` + order
	if opts.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var (
			r      NoteRow
			shared int
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.ParentID, &shared, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		r.Shared = models.Shared(shared)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the checksum of every indexed note keyed by id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// GetSettings returns the stored settings.
func (db *DB) GetSettings(ctx context.Context) (models.Settings, error) {
	var (
		s        models.Settings
		explicit int
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT daily_root_id, last_visit, explicit_save FROM settings WHERE id = 1
	`).Scan(&s.DailyRootID, &s.LastVisit, &explicit)
	if err != nil {
		return models.Settings{}, fmt.Errorf("index: get settings: %w", err)
	}
	s.ExplicitSave = explicit != 0
	return s, nil
}

// PutSettings replaces the stored settings.
func (db *DB) PutSettings(ctx context.Context, s models.Settings) error {
	explicit := 0
	if s.ExplicitSave {
		explicit = 1
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO settings (id, daily_root_id, last_visit, explicit_save)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			daily_root_id = excluded.daily_root_id,
			last_visit    = excluded.last_visit,
			explicit_save = excluded.explicit_save
	`, s.DailyRootID, s.LastVisit, explicit)
	if err != nil {
		return fmt.Errorf("index: put settings: %w", err)
	}
	return nil
}
