// Package tree maintains the note hierarchy used for breadcrumbs, sibling
// navigation and tree visibility.
package tree

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// maxIDAttempts bounds GenNewID retries on a collision with a known id.
const maxIDAttempts = 8

// Crumb is one ancestor in a breadcrumb path.
type Crumb struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Item is a snapshot of one tree node.
type Item struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	ParentID string   `json:"pid,omitempty"`
	Children []string `json:"children,omitempty"`
	Expanded bool     `json:"expanded"`
}

type node struct {
	title    string
	parentID string
	expanded bool
}

// Tree is a forest of notes keyed by id. Children keep display order.
// Entries persist for the lifetime of the Tree. It is safe for concurrent use.
type Tree struct {
	mu       sync.RWMutex
	nodes    map[string]*node
	children map[string][]string // parent id -> ordered child ids; "" holds top-level notes
	order    []string            // first-observation order
	newID    func() string
}

// Option configures a Tree.
type Option func(*Tree)

// WithIDGenerator replaces the ULID generator used by GenNewID.
func WithIDGenerator(fn func() string) Option {
	return func(t *Tree) {
		t.newID = fn
	}
}

// New creates an empty tree.
func New(opts ...Option) *Tree {
	t := &Tree{
		nodes:    make(map[string]*node),
		children: make(map[string][]string),
		newID: func() string {
			return strings.ToLower(ulid.Make().String())
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records n, creating its node on first sight and moving it under
// its new parent when the parent changed.
func (t *Tree) Observe(n models.Note) {
	if n.ID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observeLocked(n)
}

// Load observes every note in order.
func (t *Tree) Load(notes []models.Note) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range notes {
		if n.ID != "" {
			t.observeLocked(n)
		}
	}
}

func (t *Tree) observeLocked(n models.Note) {
	cur, ok := t.nodes[n.ID]
	if !ok {
		t.nodes[n.ID] = &node{title: n.Title, parentID: n.ParentID}
		t.order = append(t.order, n.ID)
		t.children[n.ParentID] = append(t.children[n.ParentID], n.ID)
		return
	}
	cur.title = n.Title
	if cur.parentID != n.ParentID {
		t.children[cur.parentID] = without(t.children[cur.parentID], n.ID)
		t.children[n.ParentID] = append(t.children[n.ParentID], n.ID)
		cur.parentID = n.ParentID
	}
}

// Remove drops a node. Its children stay in the tree and surface as roots
// until their parent is observed again.
func (t *Tree) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.nodes[id]
	if !ok {
		return
	}
	t.children[cur.parentID] = without(t.children[cur.parentID], id)
	delete(t.nodes, id)
	t.order = without(t.order, id)
}

// Get returns a snapshot of the node with the given id.
func (t *Tree) Get(id string) (Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Item{}, false
	}
	return Item{
		ID:       id,
		Title:    n.title,
		ParentID: n.parentID,
		Children: t.childrenLocked(id),
		Expanded: n.expanded,
	}, true
}

// Len returns the number of known notes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Children returns the ordered child ids of id.
func (t *Tree) Children(id string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.childrenLocked(id)
}

func (t *Tree) childrenLocked(id string) []string {
	var out []string
	for _, c := range t.children[id] {
		if _, ok := t.nodes[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Roots returns the ids of every note without a known parent, in
// first-observation order.
func (t *Tree) Roots() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootsLocked()
}

func (t *Tree) rootsLocked() []string {
	var out []string
	for _, id := range t.order {
		if t.isRootLocked(id) {
			out = append(out, id)
		}
	}
	return out
}

func (t *Tree) isRootLocked(id string) bool {
	pid := t.nodes[id].parentID
	if pid == "" {
		return true
	}
	_, ok := t.nodes[pid]
	return !ok
}

// Siblings returns the notes sharing id's parent, excluding id.
func (t *Tree) Siblings(id string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	if t.isRootLocked(id) {
		return without(t.rootsLocked(), id)
	}
	return without(t.childrenLocked(n.parentID), id)
}

// GetPaths returns the ancestors of n, nearest first, excluding n itself.
// The walk stops at a parent the tree does not know. A parent chain that
// revisits a note returns the crumbs collected so far and ErrCycle.
func (t *Tree) GetPaths(n models.Note) ([]Crumb, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pathsLocked(n)
}

func (t *Tree) pathsLocked(n models.Note) ([]Crumb, error) {
	var out []Crumb
	seen := map[string]struct{}{n.ID: {}}
	for pid := n.ParentID; pid != ""; {
		if _, dup := seen[pid]; dup {
			return out, fmt.Errorf("tree: paths of %q: %w", n.ID, apperr.ErrCycle)
		}
		p, ok := t.nodes[pid]
		if !ok {
			break
		}
		seen[pid] = struct{}{}
		out = append(out, Crumb{ID: pid, Title: p.title})
		pid = p.parentID
	}
	return out, nil
}

// CheckItemIsShown reports whether n is known and every ancestor is expanded.
func (t *Tree) CheckItemIsShown(n models.Note) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.nodes[n.ID]; !ok {
		return false
	}
	paths, err := t.pathsLocked(n)
	if err != nil {
		return false
	}
	for _, c := range paths {
		if !t.nodes[c.ID].expanded {
			return false
		}
	}
	return true
}

// ShowItem expands every ancestor of n. With a broken parent chain the
// reachable ancestors are still expanded and the integrity error returned.
func (t *Tree) ShowItem(n models.Note) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	paths, err := t.pathsLocked(n)
	for _, c := range paths {
		t.nodes[c.ID].expanded = true
	}
	return err
}

// SetExpanded expands or collapses one node.
func (t *Tree) SetExpanded(id string, expanded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[id]; ok {
		n.expanded = expanded
	}
}

// GenNewID allocates an id no known note uses.
func (t *Tree) GenNewID() (string, error) {
	for range maxIDAttempts {
		id := t.newID()
		t.mu.RLock()
		_, taken := t.nodes[id]
		t.mu.RUnlock()
		if !taken && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("tree: gen id: %w", apperr.ErrDuplicateID)
}

func without(ids []string, id string) []string {
	i := slices.Index(ids, id)
	if i < 0 {
		return ids
	}
	return slices.Delete(slices.Clone(ids), i, i+1)
}
