// Package noteservice is the server side of the remote note service: it keeps
// note files and the metadata index in step and owns the settings record.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteid"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/tree"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	models.Note
	Checksum string `json:"checksum"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	ParentID  string        `json:"pid,omitempty"`
	Shared    models.Shared `json:"shared"`
	Checksum  string        `json:"checksum"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ChangeHook is told about every note the service writes or removes.
type ChangeHook func(kind, id string)

// Option configures a Service.
type Option func(*Service)

// WithChangeHook registers a hook called after each successful mutation.
func WithChangeHook(h ChangeHook) Option {
	return func(s *Service) { s.hook = h }
}

// WithClock overrides the time source used for update stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    *index.DB
	hook  ChangeHook
	now   func() time.Time

	// mu serialises writers so that find-or-create and check-then-write
	// sequences are atomic.
	mu sync.Mutex
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, opts ...Option) *Service {
	s := &Service{store: store, db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNote reads a note from storage.
func (s *Service) GetNote(_ context.Context, id string) (*NoteDetail, error) {
	if !noteid.Valid(id) {
		return nil, fmt.Errorf("noteservice: get %q: %w", id, apperr.ErrInvalidID)
	}
	data, err := s.store.Read(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("noteservice: get %s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	return detail(id, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(ctx context.Context, n models.Note) (*NoteDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(ctx, n)
}

func (s *Service) create(_ context.Context, n models.Note) (*NoteDetail, error) {
	if !noteid.Valid(n.ID) {
		return nil, fmt.Errorf("noteservice: create %q: %w", n.ID, apperr.ErrInvalidID)
	}
	if _, err := s.store.Read(n.ID); err == nil {
		return nil, fmt.Errorf("noteservice: create %s: %w", n.ID, apperr.ErrAlreadyExists)
	}
	d, err := s.write(n)
	if err != nil {
		return nil, err
	}
	s.changed(index.ChangeCreated, n.ID)
	return d, nil
}

// FindOrCreate returns the note stored under id, creating it from seed when
// it does not exist. created reports which case happened.
func (s *Service) FindOrCreate(ctx context.Context, id string, seed models.Note) (*NoteDetail, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.GetNote(ctx, id)
	if err == nil {
		return d, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}
	seed.ID = id
	d, err = s.create(ctx, seed)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// UpdateNote replaces a note with optimistic concurrency. An empty ifMatch
// skips the check.
func (s *Service) UpdateNote(_ context.Context, n models.Note, ifMatch string) (*NoteDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !noteid.Valid(n.ID) {
		return nil, fmt.Errorf("noteservice: update %q: %w", n.ID, apperr.ErrInvalidID)
	}
	existing, err := s.store.Read(n.ID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("noteservice: update %s: %w", n.ID, apperr.ErrNotFound)
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, fmt.Errorf("noteservice: update %s: %w", n.ID, apperr.ErrConflict)
	}
	d, err := s.write(n)
	if err != nil {
		return nil, err
	}
	s.changed(index.ChangeUpdated, n.ID)
	return d, nil
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("noteservice: delete %s: %w", id, apperr.ErrNotFound)
		}
		return err
	}
	if err := s.db.DeleteNote(id); err != nil {
		return err
	}
	s.changed(index.ChangeDeleted, id)
	return nil
}

// ListNotes returns one page of note metadata.
func (s *Service) ListNotes(_ context.Context, opts index.ListOptions) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(opts)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			ID:        r.ID,
			Title:     r.Title,
			ParentID:  r.ParentID,
			Shared:    r.Shared,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Tree builds the note hierarchy from the index.
func (s *Service) Tree(ctx context.Context) (*tree.Tree, error) {
	items, _, err := s.ListNotes(ctx, index.ListOptions{})
	if err != nil {
		return nil, err
	}
	notes := make([]models.Note, len(items))
	for i, it := range items {
		notes[i] = it.Note()
	}
	t := tree.New()
	t.Load(notes)
	return t, nil
}

// Settings returns the stored settings.
func (s *Service) Settings(ctx context.Context) (models.Settings, error) {
	return s.db.GetSettings(ctx)
}

// MutateSettings applies a partial update and returns the result.
func (s *Service) MutateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.db.GetSettings(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	next := patch.Apply(cur)
	if err := s.db.PutSettings(ctx, next); err != nil {
		return models.Settings{}, err
	}
	return next, nil
}

// write renders n, stores it and indexes it. Blank content is stored as a
// single newline.
func (s *Service) write(n models.Note) (*NoteDetail, error) {
	if n.Content == "" {
		n.Content = "\n"
	}
	n.UpdatedAt = s.now().UTC()
	data, err := parser.Render(n)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(n.ID, data); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, n.ID, data, n.UpdatedAt); err != nil {
		return nil, err
	}
	return detail(n.ID, data)
}

func (s *Service) changed(kind, id string) {
	if s.hook != nil {
		s.hook(kind, id)
	}
}

// Note converts a list item to a note without content.
func (it NoteListItem) Note() models.Note {
	return models.Note{
		ID:        it.ID,
		Title:     it.Title,
		ParentID:  it.ParentID,
		Shared:    it.Shared,
		UpdatedAt: it.UpdatedAt,
	}
}

func detail(id string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Note:     res.Note(id),
		Checksum: checksum.Sum(data),
	}, nil
}
