package notestate

import "sync"

// UnsavedWarning is the confirmation prompt shown before leaving a dirty note.
const UnsavedWarning = "Warning! You have unsaved changes."

// SaveState tracks whether the in-memory note differs from its last
// persisted form, and whether edits must be saved explicitly.
type SaveState struct {
	mu       sync.Mutex
	saved    bool
	explicit bool
}

// NewSaveState returns a clean tracker.
func NewSaveState(explicit bool) *SaveState {
	return &SaveState{saved: true, explicit: explicit}
}

// IsSaved reports whether there are no unsaved edits.
func (s *SaveState) IsSaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// ExplicitSave reports whether the explicit save policy is on.
func (s *SaveState) ExplicitSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explicit
}

// SetExplicitSave switches between explicit save and autosave.
func (s *SaveState) SetExplicitSave(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explicit = on
}

// MarkDirty records a local edit.
func (s *SaveState) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = false
}

// MarkSaved records a completed save.
func (s *SaveState) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = true
}

// Reset marks the state clean after a load.
func (s *SaveState) Reset() {
	s.MarkSaved()
}

// ShouldWarn reports whether leaving now needs confirmation. It is also the
// enabled state of a manual save button.
func (s *SaveState) ShouldWarn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.saved && s.explicit
}

// Decorate prefixes title with "*" while unsaved under explicit save.
func (s *SaveState) Decorate(title string) string {
	if s.ShouldWarn() {
		return "*" + title
	}
	return title
}

// Guard asks confirm before leaving a dirty note. Declining returns false
// and leaves the state untouched; accepting discards the pending edits.
func (s *SaveState) Guard(confirm func(msg string) bool) bool {
	if !s.ShouldWarn() {
		return true
	}
	if confirm == nil || !confirm(UnsavedWarning) {
		return false
	}
	s.Reset()
	return true
}
