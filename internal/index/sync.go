package index

import (
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	files, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.ID] = struct{}{}

		if checksums[f.ID] == f.Checksum {
			continue
		}

		data, err := store.Read(f.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("id", f.ID), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, f.ID, data, f.ModTime); err != nil {
			logger.Warn("sync: index failed", slog.String("id", f.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", f.ID))
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

// IndexFile parses a note file and upserts it into the DB. modTime is used
// when the frontmatter carries no update time.
func IndexFile(db *DB, id string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	updated := res.UpdatedAt
	if updated.IsZero() {
		updated = modTime
	}
	return db.UpsertNote(NoteRow{
		ID:        id,
		Title:     res.Title,
		ParentID:  res.ParentID,
		Shared:    res.Shared,
		Checksum:  checksum.Sum(data),
		UpdatedAt: updated,
	}, res.Body)
}
