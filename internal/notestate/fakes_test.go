package notestate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navigation"
	"github.com/starford/ansuz/internal/notify"
	"github.com/starford/ansuz/internal/tree"
)

type ensureCall struct {
	id   string
	seed models.Note
}

// fakeRemote serves notes from memory. A gate blocks Fetch for an id until
// it is closed, regardless of context cancellation, to model a request that
// completes after it was superseded.
type fakeRemote struct {
	mu          sync.Mutex
	notes       map[string]models.Note
	fetchErr    map[string]error
	gates       map[string]chan struct{}
	started     chan string
	fetches     []string
	ensured     []ensureCall
	patches     []models.SettingsPatch
	settingsErr error
	saved       []models.Note
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		notes:    make(map[string]models.Note),
		fetchErr: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		started:  make(chan string, 16),
	}
}

func (f *fakeRemote) put(n models.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[n.ID] = n
}

func (f *fakeRemote) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeRemote) Fetch(_ context.Context, id string) (models.Note, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, id)
	gate := f.gates[id]
	f.mu.Unlock()

	f.started <- id
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[id]; err != nil {
		return models.Note{}, err
	}
	n, ok := f.notes[id]
	if !ok {
		return models.Note{}, fmt.Errorf("fetch %s: %w", id, apperr.ErrNotFound)
	}
	return n, nil
}

func (f *fakeRemote) FindOrCreate(_ context.Context, id string, seed models.Note) (models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, ensureCall{id: id, seed: seed})
	if n, ok := f.notes[id]; ok {
		return n, nil
	}
	f.notes[id] = seed
	return seed, nil
}

func (f *fakeRemote) SaveNote(_ context.Context, n models.Note) (models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.UpdatedAt = time.Now()
	f.notes[n.ID] = n
	f.saved = append(f.saved, n)
	return n, nil
}

func (f *fakeRemote) MutateSettings(_ context.Context, patch models.SettingsPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	return f.settingsErr
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

type memCache struct {
	mu    sync.Mutex
	notes map[string]models.Note
}

func newMemCache() *memCache {
	return &memCache{notes: make(map[string]models.Note)}
}

func (c *memCache) Get(_ context.Context, id string) (models.Note, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.notes[id]
	return n, ok, nil
}

func (c *memCache) Set(_ context.Context, n models.Note) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes[n.ID] = n
	return nil
}

type testEnv struct {
	remote  *fakeRemote
	cache   *memCache
	router  *navigation.Router
	toasts  *notify.Store
	session *Session
}

func newTestEnv(t *testing.T, settings models.Settings, confirm func(string) bool) *testEnv {
	t.Helper()
	env := &testEnv{
		remote: newFakeRemote(),
		cache:  newMemCache(),
		router: navigation.NewRouter(navigation.Home),
		toasts: notify.NewStore(nil),
	}
	env.session = New(Config{
		Remote:    env.remote,
		Cache:     env.cache,
		Tree:      tree.New(),
		Navigator: env.router,
		Notifier:  env.toasts,
		Confirm:   confirm,
		Logger:    slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		Settings:  settings,
	})
	env.session.Attach(env.router)
	t.Cleanup(env.session.Close)
	return env
}

func (e *testEnv) open(t *testing.T, raw string) error {
	t.Helper()
	loc, err := navigation.ParseLocation(raw)
	if err != nil {
		t.Fatalf("ParseLocation(%q): %v", raw, err)
	}
	return e.router.Push(context.Background(), loc, navigation.Options{})
}

func mustLocation(t *testing.T, raw string) navigation.Location {
	t.Helper()
	loc, err := navigation.ParseLocation(raw)
	if err != nil {
		t.Fatalf("ParseLocation(%q): %v", raw, err)
	}
	return loc
}

func waitStarted(t *testing.T, f *fakeRemote, id string) {
	t.Helper()
	select {
	case got := <-f.started:
		if got != id {
			t.Fatalf("fetch started for %q, want %q", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for fetch of %q", id)
	}
}
