// Package testutil provides shared test fixtures: a temp vault, a temp index
// and a way to place notes as if another program had written them.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// TestDB opens an index database in a temp dir and closes it on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "ansuz-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// ExternalEdit writes n straight to the vault and index, bypassing the note
// service, the way the watcher sees an edit made by another program.
func ExternalEdit(t *testing.T, store storage.Provider, db *index.DB, n models.Note) {
	t.Helper()
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}
	data, err := parser.Render(n)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(n.ID, data); err != nil {
		t.Fatal(err)
	}
	if err := index.IndexFile(db, n.ID, data, n.UpdatedAt); err != nil {
		t.Fatal(err)
	}
}
