package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid note id")

	// ErrSuperseded marks a load whose token was invalidated by a newer navigation.
	ErrSuperseded = errors.New("superseded")
	// ErrCycle marks a parent chain that revisits a note.
	ErrCycle = errors.New("cycle in parent links")
	// ErrDuplicateID marks an id generator that kept producing known ids.
	ErrDuplicateID = errors.New("duplicate id allocated")
	// ErrNavigationAborted is returned when a navigation guard declines a transition.
	ErrNavigationAborted = errors.New("navigation aborted")
)
