// Package storage keeps note files in a flat vault directory, one
// "<id>.md" file per note.
package storage

import (
	"path/filepath"
	"strings"
	"time"
)

// Ext is the note file extension.
const Ext = ".md"

// FileInfo describes one note file.
type FileInfo struct {
	ID       string
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for vault file operations keyed by note id.
type Provider interface {
	// List returns every note file in the vault.
	List() ([]FileInfo, error)
	// Read returns the raw bytes of a note. A missing note yields an error
	// wrapping fs.ErrNotExist.
	Read(id string) ([]byte, error)
	// Write atomically replaces the note file.
	Write(id string, content []byte) error
	// Delete removes the note file.
	Delete(id string) error
}

// FileName returns the vault file name of a note id.
func FileName(id string) string {
	return id + Ext
}

// IDFromPath returns the note id of a vault file path, or "" when the path
// is not a note file.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, Ext) || strings.HasPrefix(base, ".") {
		return ""
	}
	return strings.TrimSuffix(base, Ext)
}
