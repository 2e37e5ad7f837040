package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func writeNote(w http.ResponseWriter, status int, d *NoteDetail) {
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, status, d)
}

// ListNotes handles GET /notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size (0 for all)"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			pid		query		string	false	"Only children of this note"
//	@Param			roots	query		bool	false	"Only notes without a parent"
//	@Param			sort	query		string	false	"Sort field"	Enums(title, updated_at, id)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	roots, _ := strconv.ParseBool(q.Get("roots"))
	sort := q.Get("sort")
	if !index.KnownSort(sort) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown sort field"))
		return
	}

	items, total, err := h.svc.ListNotes(r.Context(), index.ListOptions{
		Limit:    limit,
		Offset:   offset,
		ParentID: q.Get("pid"),
		Roots:    roots,
		Sort:     sort,
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	if items == nil {
		items = []NoteListItem{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err, slog.String("id", id))
		return
	}
	writeNote(w, http.StatusOK, note)
}

// CreateNote handles POST /notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Note(req.ID))
	if err != nil {
		writeError(w, "create note", err, slog.String("id", req.ID))
		return
	}
	writeNote(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notes/{id}.
//
//	@Summary		Replace a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string		true	"Note id"
//	@Param			If-Match	header		string		false	"Checksum the client last saw"
//	@Param			body		body		NoteRequest	true	"Updated note"
//	@Success		200			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))

	note, err := h.svc.UpdateNote(r.Context(), req.Note(id), ifMatch)
	if err != nil {
		writeError(w, "update note", err, slog.String("id", id))
		return
	}
	writeNote(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnsureNote handles POST /notes/{id}/ensure.
//
//	@Summary		Find a note or create it from the given seed
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		NoteRequest	true	"Seed used when the note does not exist"
//	@Success		200		{object}	NoteDetail
//	@Success		201		{object}	NoteDetail
//	@Security		BearerAuth
//	@Router			/notes/{id}/ensure [post]
func (h *Handler) EnsureNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, created, err := h.svc.FindOrCreate(r.Context(), id, req.Note(id))
	if err != nil {
		writeError(w, "ensure note", err, slog.String("id", id))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeNote(w, status, note)
}

// Search handles GET /search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// GetSettings handles GET /settings.
//
//	@Summary		Read user settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.Settings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Settings(r.Context())
	if err != nil {
		writeError(w, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PatchSettings handles PATCH /settings.
//
//	@Summary		Update some user settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.SettingsPatch	true	"Fields to change"
//	@Success		200		{object}	models.Settings
//	@Security		BearerAuth
//	@Router			/settings [patch]
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	s, err := h.svc.MutateSettings(r.Context(), patch)
	if err != nil {
		writeError(w, "patch settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
