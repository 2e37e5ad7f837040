package navigation

import (
	"context"
	"fmt"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
)

// Options control a single transition.
type Options struct {
	// Shallow transitions update the visible route without a full reload.
	Shallow bool
}

// Entry is one history record.
type Entry struct {
	Location Location
	Shallow  bool
}

// Change describes a completed transition delivered to listeners.
type Change struct {
	From    Location
	To      Location
	Replace bool
	Shallow bool
}

// Guard is consulted before every transition; returning false aborts it.
type Guard func(from, to Location) bool

// Listener observes completed transitions.
type Listener func(ctx context.Context, c Change)

// Router is an in-process history stack. Listeners run synchronously on the
// goroutine that requested the transition, after the router lock is released,
// so a listener may navigate again.
type Router struct {
	mu        sync.Mutex
	history   []Entry
	guards    []Guard
	listeners []Listener
}

// NewRouter creates a router positioned at start.
func NewRouter(start Location) *Router {
	return &Router{history: []Entry{{Location: start}}}
}

// BeforeChange registers a guard.
func (r *Router) BeforeChange(g Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards = append(r.guards, g)
}

// OnChange registers a listener.
func (r *Router) OnChange(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Current returns the active location.
func (r *Router) Current() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1].Location
}

// History returns a copy of the history stack, oldest first.
func (r *Router) History() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.history...)
}

// Push appends a history entry.
func (r *Router) Push(ctx context.Context, to Location, opts Options) error {
	return r.transition(ctx, to, false, opts)
}

// Replace swaps the current history entry.
func (r *Router) Replace(ctx context.Context, to Location, opts Options) error {
	return r.transition(ctx, to, true, opts)
}

// Back pops the current entry. It is a no-op at the first entry.
func (r *Router) Back(ctx context.Context) error {
	r.mu.Lock()
	if len(r.history) < 2 {
		r.mu.Unlock()
		return nil
	}
	from := r.history[len(r.history)-1].Location
	to := r.history[len(r.history)-2]
	guards := append([]Guard(nil), r.guards...)
	r.mu.Unlock()

	if !allow(guards, from, to.Location) {
		return fmt.Errorf("navigation: back to %s: %w", to.Location, apperr.ErrNavigationAborted)
	}

	r.mu.Lock()
	r.history = r.history[:len(r.history)-1]
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	notify(ctx, listeners, Change{From: from, To: to.Location, Replace: true, Shallow: to.Shallow})
	return nil
}

func (r *Router) transition(ctx context.Context, to Location, replace bool, opts Options) error {
	r.mu.Lock()
	from := r.history[len(r.history)-1].Location
	guards := append([]Guard(nil), r.guards...)
	r.mu.Unlock()

	if !allow(guards, from, to) {
		return fmt.Errorf("navigation: to %s: %w", to, apperr.ErrNavigationAborted)
	}

	r.mu.Lock()
	e := Entry{Location: to, Shallow: opts.Shallow}
	if replace {
		r.history[len(r.history)-1] = e
	} else {
		r.history = append(r.history, e)
	}
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	notify(ctx, listeners, Change{From: from, To: to, Replace: replace, Shallow: opts.Shallow})
	return nil
}

func allow(guards []Guard, from, to Location) bool {
	for _, g := range guards {
		if !g(from, to) {
			return false
		}
	}
	return true
}

func notify(ctx context.Context, listeners []Listener, c Change) {
	for _, l := range listeners {
		l(ctx, c)
	}
}
