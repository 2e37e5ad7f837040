// Package models defines the domain types for Ansuz.
package models

import (
	"strings"
	"time"
)

// Shared is the visibility of a note.
type Shared int

// Visibility values. The numeric values are part of the wire format.
const (
	SharedPrivate Shared = 0
	SharedPublic  Shared = 1
)

// String returns the upper-case name used in logs and frontmatter.
func (s Shared) String() string {
	if s == SharedPublic {
		return "PUBLIC"
	}
	return "PRIVATE"
}

// ParseShared maps a frontmatter value to a visibility. Unknown values are
// private.
func ParseShared(v string) Shared {
	if strings.EqualFold(strings.TrimSpace(v), "public") {
		return SharedPublic
	}
	return SharedPrivate
}

// Note is a lightweight hierarchical document.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ParentID  string    `json:"pid,omitempty"`
	Shared    Shared    `json:"shared"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublic reports whether the note is shared publicly.
func (n Note) IsPublic() bool {
	return n.Shared == SharedPublic
}

// Settings are the per-user preferences stored next to the notes.
type Settings struct {
	DailyRootID  string `json:"daily_root_id"`
	LastVisit    string `json:"last_visit"`
	ExplicitSave bool   `json:"explicit_save"`
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	DailyRootID  *string `json:"daily_root_id,omitempty"`
	LastVisit    *string `json:"last_visit,omitempty"`
	ExplicitSave *bool   `json:"explicit_save,omitempty"`
}

// Apply returns s with every non-nil field of p applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.DailyRootID != nil {
		s.DailyRootID = *p.DailyRootID
	}
	if p.LastVisit != nil {
		s.LastVisit = *p.LastVisit
	}
	if p.ExplicitSave != nil {
		s.ExplicitSave = *p.ExplicitSave
	}
	return s
}
