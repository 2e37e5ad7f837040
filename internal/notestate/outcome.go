package notestate

import (
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navigation"
	"github.com/starford/ansuz/internal/noteid"
)

// Outcome is the result of one load. It is one of Loaded, Redirect, Failed
// or Superseded.
type Outcome interface {
	outcome()
}

// Loaded carries the note that should replace the current-note slot.
type Loaded struct {
	Note models.Note
	Kind noteid.Kind
	// Offline is set when the note came from the local cache because the
	// remote service no longer has it.
	Offline bool
}

// Redirect asks for a navigation instead of a note.
type Redirect struct {
	To      navigation.Location
	Replace bool
	Shallow bool
}

// Failed is an unrecoverable load error to surface to the user.
type Failed struct {
	Err error
}

// Superseded marks a load abandoned for a newer navigation.
type Superseded struct{}

func (Loaded) outcome()     {}
func (Redirect) outcome()   {}
func (Failed) outcome()     {}
func (Superseded) outcome() {}
