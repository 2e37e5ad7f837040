// Package remote is the HTTP client for the note service API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// Error is a non-2xx response. Message is the server's error text and is
// returned unwrapped so it can be shown to the user as is.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap classifies the status as an apperr sentinel.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		if e.Message == "checksum mismatch" {
			return apperr.ErrConflict
		}
		return apperr.ErrAlreadyExists
	case http.StatusBadRequest:
		if e.Message == "invalid note id" {
			return apperr.ErrInvalidID
		}
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the note service over HTTP. It remembers the checksum of
// every note it has seen and sends it as If-Match on save.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	etags map[string]string
}

// New creates a client for the API mounted at baseURL (for example
// "http://localhost:8080/api"). An empty token sends no Authorization header.
func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		http:   &http.Client{Timeout: timeout},
		logger: slog.Default(),
		etags:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type noteDetail struct {
	models.Note
	Checksum string `json:"checksum"`
}

type noteRequest struct {
	ID       string        `json:"id,omitempty"`
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	ParentID string        `json:"pid,omitempty"`
	Shared   models.Shared `json:"shared"`
}

func toRequest(n models.Note, withID bool) noteRequest {
	req := noteRequest{Title: n.Title, Content: n.Content, ParentID: n.ParentID, Shared: n.Shared}
	if withID {
		req.ID = n.ID
	}
	return req
}

// Fetch returns the note stored under id.
func (c *Client) Fetch(ctx context.Context, id string) (models.Note, error) {
	var d noteDetail
	if err := c.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), nil, nil, &d); err != nil {
		return models.Note{}, wrap("fetch "+id, err)
	}
	c.remember(d)
	return d.Note, nil
}

// FindOrCreate returns the note stored under id, creating it from seed first
// when it does not exist.
func (c *Client) FindOrCreate(ctx context.Context, id string, seed models.Note) (models.Note, error) {
	var d noteDetail
	path := "/notes/" + url.PathEscape(id) + "/ensure"
	if err := c.do(ctx, http.MethodPost, path, nil, toRequest(seed, false), &d); err != nil {
		return models.Note{}, wrap("ensure "+id, err)
	}
	c.remember(d)
	return d.Note, nil
}

// SaveNote replaces the stored note, guarded by the last checksum this client
// saw. A note the server does not know yet is created.
func (c *Client) SaveNote(ctx context.Context, n models.Note) (models.Note, error) {
	var d noteDetail
	header := http.Header{}
	if sum := c.etag(n.ID); sum != "" {
		header.Set("If-Match", checksum.ETag(sum))
	}
	err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(n.ID), header, toRequest(n, false), &d)
	if errors.Is(err, apperr.ErrNotFound) {
		err = c.do(ctx, http.MethodPost, "/notes", nil, toRequest(n, true), &d)
	}
	if err != nil {
		return models.Note{}, wrap("save "+n.ID, err)
	}
	c.remember(d)
	return d.Note, nil
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return wrap("delete "+id, err)
	}
	c.mu.Lock()
	delete(c.etags, id)
	c.mu.Unlock()
	return nil
}

// ListNotes returns metadata for every note. Content is left empty.
func (c *Client) ListNotes(ctx context.Context) ([]models.Note, error) {
	var resp struct {
		Notes []struct {
			ID        string        `json:"id"`
			Title     string        `json:"title"`
			ParentID  string        `json:"pid"`
			Shared    models.Shared `json:"shared"`
			Checksum  string        `json:"checksum"`
			UpdatedAt time.Time     `json:"updated_at"`
		} `json:"notes"`
		Total int `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/notes", nil, nil, &resp); err != nil {
		return nil, wrap("list notes", err)
	}
	notes := make([]models.Note, 0, len(resp.Notes))
	for _, it := range resp.Notes {
		notes = append(notes, models.Note{
			ID:        it.ID,
			Title:     it.Title,
			ParentID:  it.ParentID,
			Shared:    it.Shared,
			UpdatedAt: it.UpdatedAt,
		})
	}
	return notes, nil
}

// SearchResult is a single search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Search runs a full-text query. limit <= 0 uses the server default.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	v := url.Values{"q": {query}}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/search?"+v.Encode(), nil, nil, &resp); err != nil {
		return nil, wrap("search", err)
	}
	return resp.Results, nil
}

// Settings reads the user settings.
func (c *Client) Settings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	if err := c.do(ctx, http.MethodGet, "/settings", nil, nil, &s); err != nil {
		return models.Settings{}, wrap("settings", err)
	}
	return s, nil
}

// MutateSettings applies a partial settings update.
func (c *Client) MutateSettings(ctx context.Context, patch models.SettingsPatch) error {
	if err := c.do(ctx, http.MethodPatch, "/settings", nil, patch, nil); err != nil {
		return wrap("mutate settings", err)
	}
	return nil
}

// wrap adds op context to transport failures. Server-reported errors pass
// through untouched.
func wrap(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return fmt.Errorf("remote: %s: %w", op, err)
}

func (c *Client) remember(d noteDetail) {
	if d.Checksum == "" {
		return
	}
	c.mu.Lock()
	c.etags[d.ID] = d.Checksum
	c.mu.Unlock()
}

func (c *Client) etag(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.etags[id]
}

// do sends one request. A nil body sends none; a nil out discards the response.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("remote request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", reqID),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseError turns an error response into an *Error. The API answers with
// {"error": "..."}; any other body is used verbatim.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}
