// Package noteid classifies requested note identifiers into load actions.
package noteid

import (
	"fmt"
	"regexp"
	"time"
)

// FreshSentinel is the identifier that asks for a newly allocated id.
const FreshSentinel = "new"

var (
	dailyRe = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)
	validRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)
)

// Kind is the branch a requested identifier resolves to.
type Kind int

const (
	// KindDaily finds or creates the daily note named by the identifier.
	KindDaily Kind = iota + 1
	// KindFresh allocates a new id and redirects to it.
	KindFresh
	// KindExisting fetches the note from the remote service.
	KindExisting
	// KindNewLocal resolves the note from the local cache or initialises a blank one.
	KindNewLocal
)

func (k Kind) String() string {
	switch k {
	case KindDaily:
		return "daily"
	case KindFresh:
		return "fresh"
	case KindExisting:
		return "existing"
	case KindNewLocal:
		return "new-local"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request is a navigation target as seen by the classifier.
type Request struct {
	ID       string
	IsNew    bool   // "new" query marker present
	ParentID string // "pid" query parameter
}

// Action is the classified request.
type Action struct {
	Kind     Kind
	ID       string
	ParentID string
}

// Classify maps a request to exactly one Kind. The daily pattern is checked
// first, so a date-shaped id is daily even when the new marker is set. An
// empty id is treated like the fresh sentinel.
func Classify(req Request) Action {
	a := Action{ID: req.ID, ParentID: req.ParentID}
	switch {
	case IsDaily(req.ID):
		a.Kind = KindDaily
	case req.ID == FreshSentinel || req.ID == "":
		a.Kind = KindFresh
	case !req.IsNew:
		a.Kind = KindExisting
	default:
		a.Kind = KindNewLocal
	}
	return a
}

// IsDaily reports whether id has the YYYY-M-D daily note shape.
func IsDaily(id string) bool {
	return dailyRe.MatchString(id)
}

// DailyID returns the unpadded daily note id for t.
func DailyID(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}

// Valid reports whether id can name a stored note: a short run of letters,
// digits, '-' and '_' that is not the fresh sentinel.
func Valid(id string) bool {
	return id != FreshSentinel && validRe.MatchString(id)
}
