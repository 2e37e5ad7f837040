// Package parser reads and writes the on-disk note format: YAML frontmatter
// carrying the note metadata followed by the Markdown body.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

const delim = "---"

// frontmatter is the metadata block of a note file. The note id is the file
// name and is not repeated here.
type frontmatter struct {
	Title    string `yaml:"title"`
	ParentID string `yaml:"pid,omitempty"`
	Shared   string `yaml:"shared,omitempty"`
	Updated  string `yaml:"updated,omitempty"`
}

// Result holds the output of parsing a note file.
type Result struct {
	Title     string
	ParentID  string
	Shared    models.Shared
	UpdatedAt time.Time
	Body      string
	// HasFrontmatter is false when the file had no valid metadata block.
	HasFrontmatter bool
}

// Parse splits raw note bytes into metadata and body. A missing or invalid
// frontmatter block is not an error: the whole file becomes the body and the
// title falls back to the first H1 heading.
func Parse(data []byte) (*Result, error) {
	fm, body, ok := splitFrontmatter(data)
	res := &Result{Body: body, HasFrontmatter: ok}
	if ok {
		res.Title = fm.Title
		res.ParentID = fm.ParentID
		res.Shared = models.ParseShared(fm.Shared)
		if fm.Updated != "" {
			if ts, err := time.Parse(time.RFC3339Nano, fm.Updated); err == nil {
				res.UpdatedAt = ts
			}
		}
	}
	if res.Title == "" {
		res.Title = firstHeading(body)
	}
	return res, nil
}

// Note builds the note stored under id.
func (r *Result) Note(id string) models.Note {
	return models.Note{
		ID:        id,
		Title:     r.Title,
		Content:   r.Body,
		ParentID:  r.ParentID,
		Shared:    r.Shared,
		UpdatedAt: r.UpdatedAt,
	}
}

// Render serialises n into the on-disk format. Parse(Render(n)) yields n
// back apart from the id, which lives in the file name.
func Render(n models.Note) ([]byte, error) {
	fm := frontmatter{Title: n.Title, ParentID: n.ParentID}
	if n.IsPublic() {
		fm.Shared = "public"
	}
	if !n.UpdatedAt.IsZero() {
		fm.Updated = n.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	meta, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: render %s: %w", n.ID, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(meta) + len(n.Content) + 2*len(delim) + 2)
	buf.WriteString(delim + "\n")
	buf.Write(meta)
	buf.WriteString(delim + "\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// splitFrontmatter separates the leading YAML block from the body. Exactly one
// line break after the closing delimiter is consumed so that bodies keep
// their leading blank lines.
func splitFrontmatter(data []byte) (frontmatter, string, bool) {
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data), false
	}

	block := rest[:idx]
	body := string(rest[idx+1+len(delim):])
	body = strings.TrimPrefix(body, "\r")
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal(block, &fm); err != nil {
		return frontmatter{}, string(data), false
	}
	return fm, body, true
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
