package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navigation"
	"github.com/starford/ansuz/internal/notestate"
	"github.com/starford/ansuz/internal/notify"
	"github.com/starford/ansuz/internal/remote"
	"github.com/starford/ansuz/internal/tree"
)

// OpenReport is what the open command prints.
type OpenReport struct {
	Route       string         `json:"route"`
	Note        *models.Note   `json:"note,omitempty"`
	Title       string         `json:"title,omitempty"`
	Breadcrumbs []tree.Crumb   `json:"breadcrumbs,omitempty"`
	ShownInTree bool           `json:"shown_in_tree"`
	Toasts      []notify.Toast `json:"toasts,omitempty"`
}

// RefLocation turns a command line reference into a route. A reference
// without a leading slash is a note id.
func RefLocation(ref string) (navigation.Location, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return navigation.Location{}, errors.New("empty note reference")
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return navigation.ParseLocation(ref)
}

// Open runs one navigation session against the remote note service and
// writes an OpenReport describing where it ended up.
func Open(ctx context.Context, ref string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger(os.Stderr)

	loc, err := RefLocation(ref)
	if err != nil {
		return err
	}

	noteCache, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer noteCache.Close()

	client := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout, remote.WithLogger(logger))

	settings := cfg.Notes.Settings()
	if st, err := client.Settings(ctx); err != nil {
		logger.Warn("remote settings unavailable, using config", slog.String("error", err.Error()))
	} else {
		if st.DailyRootID == "" {
			st.DailyRootID = settings.DailyRootID
		}
		settings = st
	}

	t := tree.New()
	if notes, err := client.ListNotes(ctx); err != nil {
		logger.Warn("note list unavailable, tree starts empty", slog.String("error", err.Error()))
	} else {
		t.Load(notes)
	}

	toasts := notify.NewStore(logger)
	router := navigation.NewRouter(navigation.Home)
	sess := notestate.New(notestate.Config{
		Remote:    client,
		Cache:     noteCache,
		Tree:      t,
		Navigator: router,
		Notifier:  toasts,
		Logger:    logger,
		Settings:  settings,
	})
	sess.Attach(router)

	if err := router.Push(ctx, loc, navigation.Options{}); err != nil {
		return fmt.Errorf("navigate to %s: %w", loc, err)
	}
	sess.Close()

	return json.NewEncoder(app.out).Encode(report(router, sess, toasts, logger))
}

func report(router *navigation.Router, sess *notestate.Session, toasts *notify.Store, logger *slog.Logger) OpenReport {
	r := OpenReport{
		Route:  router.Current().String(),
		Toasts: toasts.Drain(),
	}
	n, ok := sess.Current()
	if !ok {
		return r
	}
	r.Note = &n
	r.Title = sess.Title()
	crumbs, err := sess.Paths()
	if err != nil && !errors.Is(err, apperr.ErrCycle) {
		logger.Warn("breadcrumbs unavailable", slog.String("error", err.Error()))
	}
	r.Breadcrumbs = crumbs
	r.ShownInTree = sess.IsShownInTree()
	return r
}
