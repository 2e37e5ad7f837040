package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/noteid"
	"github.com/starford/ansuz/internal/storage"
)

// Change kinds passed to EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, id string)

// reconcileDelay debounces the reconciliation pass after renames.
const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the vault root and processes note file
// changes until ctx is cancelled. It calls cb (if non-nil) after each
// successful index mutation.
//
// Rename events trigger a reconciliation pass that removes stale index
// entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	emit := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			id := storage.IDFromPath(ev.Name)
			if !noteid.Valid(id) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(id)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("id", id), slog.String("error", readErr.Error()))
					continue
				}
				prev, _ := db.GetChecksum(id)
				if prev == checksum.Sum(data) {
					// Already indexed by the writer.
					continue
				}
				if idxErr := IndexFile(db, id, data, time.Now()); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("id", id), slog.String("error", idxErr.Error()))
					continue
				}
				kind := ChangeUpdated
				if prev == "" {
					kind = ChangeCreated
				}
				logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
				emit(kind, id)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				emit(ChangeDeleted, id)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old name only; the new name
				// arrives as a separate Create while it stays in the vault.
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
				} else {
					emit(ChangeDeleted, id)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a file and indexes files that
// are missing or stale in the index.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, emit EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	files, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]storage.FileInfo, len(files))
	for _, f := range files {
		disk[f.ID] = f
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteNote(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("id", id))
				emit(ChangeDeleted, id)
			}
		}
	}

	for id, f := range disk {
		prev, known := checksums[id]
		if prev == f.Checksum {
			continue
		}
		data, readErr := store.Read(id)
		if readErr != nil {
			continue
		}
		if idxErr := IndexFile(db, id, data, f.ModTime); idxErr == nil {
			kind := ChangeUpdated
			if !known {
				kind = ChangeCreated
			}
			logger.Debug("reconcile: indexed", slog.String("id", id))
			emit(kind, id)
		}
	}
}
