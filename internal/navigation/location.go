// Package navigation provides the in-process router the note session drives:
// locations, a history stack, change guards and change listeners.
package navigation

import (
	"fmt"
	"net/url"
	"strings"
)

// Query parameter names understood by the note session.
const (
	ParamNew    = "new"
	ParamParent = "pid"
)

// Home is the safe default location.
var Home = Location{Path: "/"}

// Location is a route path plus its query parameters.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation parses a route such as "/abc?new&pid=x". A bare id is
// treated as "/id".
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("navigation: parse %q: %w", raw, err)
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return Location{Path: p, Query: u.Query()}, nil
}

// NoteLocation returns the location of a note id.
func NoteLocation(id string) Location {
	return Location{Path: "/" + id}
}

// NoteID returns the path without its leading slash.
func (l Location) NoteID() string {
	return strings.TrimPrefix(l.Path, "/")
}

// Has reports whether the query carries key, with or without a value.
func (l Location) Has(key string) bool {
	_, ok := l.Query[key]
	return ok
}

// Get returns the first value of a query parameter.
func (l Location) Get(key string) string {
	return l.Query.Get(key)
}

// With returns a copy of l with key set to value.
func (l Location) With(key, value string) Location {
	q := url.Values{}
	for k, v := range l.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(key, value)
	return Location{Path: l.Path, Query: q}
}

// String renders the location. A valueless "new" marker is written bare,
// matching the links the session generates ("/id?new&pid=x").
func (l Location) String() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	var b strings.Builder
	b.WriteString(l.Path)
	sep := "?"
	if v, ok := l.Query[ParamNew]; ok {
		b.WriteString(sep)
		b.WriteString(ParamNew)
		if len(v) > 0 && v[0] != "" {
			b.WriteString("=" + url.QueryEscape(v[0]))
		}
		sep = "&"
	}
	rest := url.Values{}
	for k, v := range l.Query {
		if k != ParamNew {
			rest[k] = v
		}
	}
	if enc := rest.Encode(); enc != "" {
		b.WriteString(sep + enc)
	}
	return b.String()
}
