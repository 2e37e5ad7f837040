package notestate

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navigation"
	"github.com/starford/ansuz/internal/noteid"
)

// blankContent is the content of a freshly initialised note.
const blankContent = "\n"

// Remote is the remote note service contract.
type Remote interface {
	// Fetch returns the note or an error wrapping apperr.ErrNotFound.
	Fetch(ctx context.Context, id string) (models.Note, error)
	FindOrCreate(ctx context.Context, id string, seed models.Note) (models.Note, error)
	SaveNote(ctx context.Context, n models.Note) (models.Note, error)
	MutateSettings(ctx context.Context, patch models.SettingsPatch) error
}

// Cache is the local note cache contract.
type Cache interface {
	Get(ctx context.Context, id string) (models.Note, bool, error)
	Set(ctx context.Context, n models.Note) error
}

// IDGenerator allocates fresh note ids.
type IDGenerator interface {
	GenNewID() (string, error)
}

// Loader resolves a navigation target into an Outcome. It performs no
// navigation or notification itself.
type Loader struct {
	remote    Remote
	cache     Cache
	ids       IDGenerator
	dailyRoot func() string
	logger    *slog.Logger
}

// NewLoader creates a loader. dailyRoot is read on every daily load so that
// settings changes apply without rebuilding the loader.
func NewLoader(remote Remote, cache Cache, ids IDGenerator, dailyRoot func() string, logger *slog.Logger) *Loader {
	if dailyRoot == nil {
		dailyRoot = func() string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{remote: remote, cache: cache, ids: ids, dailyRoot: dailyRoot, logger: logger}
}

// RequestFrom extracts the classifier input from a location.
func RequestFrom(loc navigation.Location) noteid.Request {
	return noteid.Request{
		ID:       loc.NoteID(),
		IsNew:    loc.Has(navigation.ParamNew),
		ParentID: loc.Get(navigation.ParamParent),
	}
}

// Load resolves loc. preview, when non-nil, receives a cached snapshot of an
// existing note before the remote fetch completes.
func (l *Loader) Load(ctx context.Context, loc navigation.Location, preview func(models.Note)) Outcome {
	a := noteid.Classify(RequestFrom(loc))
	switch a.Kind {
	case noteid.KindDaily:
		return l.loadDaily(ctx, a)
	case noteid.KindFresh:
		return l.allocate(a)
	case noteid.KindExisting:
		return l.fetch(ctx, loc, a, preview)
	case noteid.KindNewLocal:
		return l.initLocal(ctx, a)
	}
	return Failed{Err: errors.New("notestate: unclassified note id")}
}

func (l *Loader) loadDaily(ctx context.Context, a noteid.Action) Outcome {
	seed := models.Note{
		ID:       a.ID,
		Title:    a.ID,
		Content:  blankContent,
		ParentID: l.dailyRoot(),
	}
	n, err := l.remote.FindOrCreate(ctx, a.ID, seed)
	if err != nil {
		return l.failure(ctx, a, err)
	}
	l.remember(ctx, n)
	return Loaded{Note: n, Kind: a.Kind}
}

func (l *Loader) allocate(a noteid.Action) Outcome {
	id, err := l.ids.GenNewID()
	if err != nil {
		return Failed{Err: err}
	}
	q := url.Values{navigation.ParamNew: {""}}
	if a.ParentID != "" {
		q.Set(navigation.ParamParent, a.ParentID)
	}
	return Redirect{
		To:      navigation.Location{Path: "/" + id, Query: q},
		Replace: true,
		Shallow: true,
	}
}

func (l *Loader) fetch(ctx context.Context, loc navigation.Location, a noteid.Action, preview func(models.Note)) Outcome {
	cached, hit := l.lookup(ctx, a.ID)
	if hit && preview != nil {
		preview(cached)
	}

	n, err := l.remote.Fetch(ctx, a.ID)
	switch {
	case err == nil:
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return Superseded{}
	case errors.Is(err, apperr.ErrNotFound):
		if hit {
			l.logger.Info("note missing remotely, using cached copy", slog.String("id", a.ID))
			return Loaded{Note: cached, Kind: a.Kind, Offline: true}
		}
		return Redirect{To: loc.With(navigation.ParamNew, "1"), Replace: true}
	default:
		return l.failure(ctx, a, err)
	}

	if n.Content == "" {
		n.Content = blankContent
	}
	l.remember(ctx, n)
	return Loaded{Note: n, Kind: a.Kind}
}

func (l *Loader) initLocal(ctx context.Context, a noteid.Action) Outcome {
	if _, hit := l.lookup(ctx, a.ID); hit {
		return Redirect{To: navigation.NoteLocation(a.ID), Shallow: true}
	}
	return Loaded{
		Note: models.Note{ID: a.ID, Content: blankContent, ParentID: a.ParentID},
		Kind: a.Kind,
	}
}

// lookup reads the cache. A failing cache read counts as a miss.
func (l *Loader) lookup(ctx context.Context, id string) (models.Note, bool) {
	n, ok, err := l.cache.Get(ctx, id)
	if err != nil {
		l.logger.Warn("cache read failed", slog.String("id", id), slog.String("error", err.Error()))
		return models.Note{}, false
	}
	return n, ok
}

func (l *Loader) remember(ctx context.Context, n models.Note) {
	if err := l.cache.Set(ctx, n); err != nil {
		l.logger.Warn("cache write failed", slog.String("id", n.ID), slog.String("error", err.Error()))
	}
}

func (l *Loader) failure(ctx context.Context, a noteid.Action, err error) Outcome {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return Superseded{}
	}
	l.logger.Error("load note failed",
		slog.String("id", a.ID),
		slog.String("kind", a.Kind.String()),
		slog.String("error", err.Error()))
	return Failed{Err: err}
}
