// Package notestate is the note state and navigation engine: it resolves
// navigation targets into loaded notes, keeps only the most recently issued
// load authoritative, tracks unsaved edits, and exposes the breadcrumb and
// tree queries the navigation bar needs.
package notestate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navigation"
	"github.com/starford/ansuz/internal/noteid"
	"github.com/starford/ansuz/internal/tree"
)

// ErrNoNote is returned by operations that need a current note.
var ErrNoNote = errors.New("notestate: no current note")

// Toast kinds.
const (
	ToastError   = "error"
	ToastSuccess = "success"
)

// Navigator performs route transitions.
type Navigator interface {
	Push(ctx context.Context, to navigation.Location, opts navigation.Options) error
	Replace(ctx context.Context, to navigation.Location, opts navigation.Options) error
}

// Notifier shows user-visible messages.
type Notifier interface {
	Toast(msg, kind string)
}

// Config holds the collaborators of a Session.
type Config struct {
	Remote    Remote
	Cache     Cache
	Tree      *tree.Tree
	Navigator Navigator
	Notifier  Notifier
	// Confirm asks the user to confirm leaving unsaved edits. Nil declines.
	Confirm func(msg string) bool
	Logger  *slog.Logger

	Settings models.Settings
	// SideEffectTimeout bounds the fire-and-forget settings update.
	SideEffectTimeout time.Duration
}

// Session is the single owner of the current note, loading flag, tree and
// save state shared by the editor, navigation bar and breadcrumbs.
type Session struct {
	loader   *Loader
	remote   Remote
	cache    Cache
	tree     *tree.Tree
	save     *SaveState
	nav      Navigator
	notifier Notifier
	confirm  func(string) bool
	logger   *slog.Logger
	timeout  time.Duration

	mu        sync.Mutex
	note      *models.Note
	loading   bool
	gen       uint64
	cancel    context.CancelFunc
	dailyRoot string
	onSave    func(ctx context.Context, n models.Note) (models.Note, error)
	// edits counts Edit calls so a save can tell whether the slot changed
	// while it was in flight.
	edits uint64

	bg sync.WaitGroup
}

// New creates a session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := cfg.Tree
	if t == nil {
		t = tree.New()
	}
	timeout := cfg.SideEffectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Session{
		remote:    cfg.Remote,
		cache:     cfg.Cache,
		tree:      t,
		save:      NewSaveState(cfg.Settings.ExplicitSave),
		nav:       cfg.Navigator,
		notifier:  cfg.Notifier,
		confirm:   cfg.Confirm,
		logger:    logger,
		timeout:   timeout,
		dailyRoot: cfg.Settings.DailyRootID,
	}
	s.loader = NewLoader(cfg.Remote, cfg.Cache, t, s.dailyRootID, logger)
	return s
}

// Attach wires the session to a router: the unsaved-changes guard runs
// before every transition and every transition to a note route loads it.
func (s *Session) Attach(r *navigation.Router) {
	r.BeforeChange(func(_, _ navigation.Location) bool {
		return s.save.Guard(s.confirm)
	})
	r.OnChange(func(ctx context.Context, c navigation.Change) {
		if c.To.NoteID() == "" {
			s.Abort()
			return
		}
		s.Load(ctx, c.To)
	})
}

// ApplySettings updates the daily root and the save policy.
func (s *Session) ApplySettings(st models.Settings) {
	s.mu.Lock()
	s.dailyRoot = st.DailyRootID
	s.mu.Unlock()
	s.save.SetExplicitSave(st.ExplicitSave)
}

func (s *Session) dailyRootID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyRoot
}

// issue invalidates the previous load and returns the context and
// generation of a new one.
func (s *Session) issue(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	s.loading = true
	return ctx, s.gen
}

// Abort invalidates any in-flight load without starting a new one.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.loading = false
}

// live reports whether gen is the most recently issued load.
func (s *Session) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// commit stores n in the current-note slot if gen is still live.
func (s *Session) commit(gen uint64, n models.Note, final bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.note = &n
	s.tree.Observe(n)
	if final {
		s.loading = false
		s.save.Reset()
	}
	return true
}

func (s *Session) finish(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.loading = false
	return true
}

// Load resolves loc and applies the outcome. Only the most recently issued
// load may change session state; earlier loads that complete later are
// reported as Superseded.
func (s *Session) Load(ctx context.Context, loc navigation.Location) Outcome {
	loadCtx, gen := s.issue(ctx)

	out := s.loader.Load(loadCtx, loc, func(n models.Note) {
		s.commit(gen, n, false)
	})

	switch o := out.(type) {
	case Loaded:
		if !s.commit(gen, o.Note, true) {
			return s.superseded(loc)
		}
		if o.Kind != noteid.KindDaily && o.Kind != noteid.KindFresh {
			s.rememberVisit(ctx, loc.NoteID())
		}
	case Redirect:
		if !s.finish(gen) {
			return s.superseded(loc)
		}
		s.redirect(ctx, o)
	case Failed:
		if !s.finish(gen) {
			return s.superseded(loc)
		}
		s.notify(o.Err.Error(), ToastError)
		if err := s.push(ctx, navigation.Home, navigation.Options{Shallow: true}); err != nil {
			s.logger.Warn("redirect home failed", slog.String("error", err.Error()))
		}
	case Superseded:
		s.finish(gen)
		return s.superseded(loc)
	}
	return out
}

func (s *Session) superseded(loc navigation.Location) Outcome {
	s.logger.Debug("load superseded", slog.String("location", loc.String()))
	return Superseded{}
}

func (s *Session) redirect(ctx context.Context, r Redirect) {
	opts := navigation.Options{Shallow: r.Shallow}
	var err error
	if r.Replace {
		err = s.replace(ctx, r.To, opts)
	} else {
		err = s.push(ctx, r.To, opts)
	}
	if err != nil {
		s.logger.Warn("redirect failed", slog.String("to", r.To.String()), slog.String("error", err.Error()))
	}
}

func (s *Session) push(ctx context.Context, to navigation.Location, opts navigation.Options) error {
	if s.nav == nil {
		return nil
	}
	return s.nav.Push(ctx, to, opts)
}

func (s *Session) replace(ctx context.Context, to navigation.Location, opts navigation.Options) error {
	if s.nav == nil {
		return nil
	}
	return s.nav.Replace(ctx, to, opts)
}

func (s *Session) notify(msg, kind string) {
	if s.notifier != nil {
		s.notifier.Toast(msg, kind)
	}
}

// rememberVisit records the last visited note. It never fails the load.
func (s *Session) rememberVisit(ctx context.Context, id string) {
	if s.remote == nil {
		return
	}
	visit := "/" + id
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.remote.MutateSettings(ctx, models.SettingsPatch{LastVisit: &visit}); err != nil {
			s.logger.Warn("update last visit failed", slog.String("last_visit", visit), slog.String("error", err.Error()))
		}
	}()
}

// Close waits for pending side effects.
func (s *Session) Close() {
	s.Abort()
	s.bg.Wait()
}

// Current returns the current note.
func (s *Session) Current() (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.note == nil {
		return models.Note{}, false
	}
	return *s.note, true
}

// Loading reports whether the latest load is still in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SaveState exposes the save tracker.
func (s *Session) SaveState() *SaveState {
	return s.save
}

// Tree exposes the note tree.
func (s *Session) Tree() *tree.Tree {
	return s.tree
}

// Title returns the current note title, prefixed with "*" while unsaved
// under explicit save.
func (s *Session) Title() string {
	n, _ := s.Current()
	return s.save.Decorate(n.Title)
}

// Paths returns the breadcrumb ancestors of the current note, nearest first.
func (s *Session) Paths() ([]tree.Crumb, error) {
	n, ok := s.Current()
	if !ok {
		return nil, nil
	}
	return s.tree.GetPaths(n)
}

// IsShownInTree reports whether the current note is visible in the tree.
func (s *Session) IsShownInTree() bool {
	n, ok := s.Current()
	return ok && s.tree.CheckItemIsShown(n)
}

// ShowInTree expands the ancestors of the current note.
func (s *Session) ShowInTree() error {
	n, ok := s.Current()
	if !ok {
		return nil
	}
	return s.tree.ShowItem(n)
}

// ShareTarget returns the note the share popover acts on and whether it is
// already public.
func (s *Session) ShareTarget() (models.Note, bool, error) {
	n, ok := s.Current()
	if !ok {
		return models.Note{}, false, ErrNoNote
	}
	return n, n.IsPublic(), nil
}

// MenuTarget returns the note the note menu acts on.
func (s *Session) MenuTarget() (models.Note, error) {
	n, ok := s.Current()
	if !ok {
		return models.Note{}, ErrNoNote
	}
	return n, nil
}

// SetSaveHandler replaces the save trigger. The default writes the note to
// the remote service and the local cache.
func (s *Session) SetSaveHandler(fn func(ctx context.Context, n models.Note) (models.Note, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSave = fn
}

// Edit applies an editor change to the current note and marks it dirty.
// Under autosave the note is saved immediately.
func (s *Session) Edit(ctx context.Context, mutate func(n *models.Note)) error {
	s.mu.Lock()
	if s.note == nil {
		s.mu.Unlock()
		return ErrNoNote
	}
	n := *s.note
	mutate(&n)
	s.note = &n
	s.edits++
	s.mu.Unlock()

	s.save.MarkDirty()
	if !s.save.ExplicitSave() {
		return s.Save(ctx)
	}
	return nil
}

// Save persists the current note and marks the state saved. A save only
// settles the save state of the note and edit it started from: if the
// session moved to another load meanwhile, the result is recorded in the
// tree and nothing else; if the note was edited meanwhile, the newer
// content stays in the slot and the state stays dirty.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.note == nil {
		s.mu.Unlock()
		return ErrNoNote
	}
	n := *s.note
	gen, edits := s.gen, s.edits
	handler := s.onSave
	s.mu.Unlock()

	if handler == nil {
		handler = s.saveRemote
	}
	saved, err := handler(ctx, n)
	if err != nil {
		s.notify(err.Error(), ToastError)
		return fmt.Errorf("notestate: save %s: %w", n.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case gen != s.gen || s.note == nil || s.note.ID != saved.ID:
		s.tree.Observe(saved)
	case edits != s.edits:
		cur := *s.note
		cur.UpdatedAt = saved.UpdatedAt
		s.note = &cur
		s.tree.Observe(cur)
	default:
		s.note = &saved
		s.tree.Observe(saved)
		s.save.MarkSaved()
	}
	return nil
}

func (s *Session) saveRemote(ctx context.Context, n models.Note) (models.Note, error) {
	saved, err := s.remote.SaveNote(ctx, n)
	if err != nil {
		return models.Note{}, err
	}
	if err := s.cache.Set(ctx, saved); err != nil {
		s.logger.Warn("cache write failed", slog.String("id", saved.ID), slog.String("error", err.Error()))
	}
	return saved, nil
}
