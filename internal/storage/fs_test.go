package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\ntitle: Hello\n---\nWorld\n")
	if err := s.Write("note1", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "note1.md")); err != nil {
		t.Errorf("expected note1.md on disk: %v", err)
	}
}

func TestRead_Missing(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read("absent")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del", []byte("bye"))
	if err := s.Delete("del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a", []byte("a"))
	_ = s.Write("2024-3-5", []byte("daily"))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not md"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), "bad name.md"), []byte("skipped"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.Root(), "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), "sub", "nested.md"), []byte("nested"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	for _, it := range items {
		if it.ID == "a" && it.Checksum != checksum.Sum([]byte("a")) {
			t.Errorf("checksum for a = %q", it.Checksum)
		}
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	s := tempVault(t)
	for _, id := range []string{"../../etc/passwd", "../outside", "/etc/shadow", "a/b", "", "new"} {
		if _, err := s.Read(id); !errors.Is(err, apperr.ErrInvalidID) {
			t.Errorf("Read(%q) err = %v, want ErrInvalidID", id, err)
		}
		if err := s.Write(id, []byte("x")); !errors.Is(err, apperr.ErrInvalidID) {
			t.Errorf("Write(%q) err = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("atomic", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".ansuz-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/vault/abc.md":          "abc",
		"2024-3-5.md":            "2024-3-5",
		"/vault/readme.txt":      "",
		"/vault/.ansuz-tmp-1.md": "",
	}
	for in, want := range cases {
		if got := IDFromPath(in); got != want {
			t.Errorf("IDFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "ansuz-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
