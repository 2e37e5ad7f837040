package api

import (
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
)

// NoteRequest is the request body for creating, replacing or seeding a note.
// The id is taken from the URL where the route names one.
type NoteRequest struct {
	ID       string        `json:"id,omitempty" example:"01hzx8k2m3n4p5q6r7s8t9v0w1"`
	Title    string        `json:"title" example:"Hello"`
	Content  string        `json:"content" example:"Body text"`
	ParentID string        `json:"pid,omitempty" example:"01hzx8k2m3n4p5q6r7s8t9v0w0"`
	Shared   models.Shared `json:"shared" example:"0"`
}

// Note converts the request into a note stored under id.
func (r NoteRequest) Note(id string) models.Note {
	return models.Note{
		ID:       id,
		Title:    r.Title,
		Content:  r.Content,
		ParentID: r.ParentID,
		Shared:   r.Shared,
	}
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
