// Package notify collects user-visible toast messages.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Toast is one user-visible message.
type Toast struct {
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps toasts until they are drained and mirrors each one to a logger.
type Store struct {
	mu     sync.Mutex
	toasts []Toast
	logger *slog.Logger
}

// NewStore creates an empty store. logger may be nil.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Toast records a message.
func (s *Store) Toast(msg, kind string) {
	s.mu.Lock()
	s.toasts = append(s.toasts, Toast{Message: msg, Kind: kind, CreatedAt: time.Now()})
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("toast", slog.String("kind", kind), slog.String("message", msg))
	}
}

// List returns a copy of the pending toasts.
func (s *Store) List() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}

// Drain returns the pending toasts and clears the store.
func (s *Store) Drain() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.toasts
	s.toasts = nil
	return out
}
