package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clubflow/internal/approval"
	"clubflow/internal/config"
	"clubflow/internal/router"
)

// RequestIDHeader carries the correlation ID of every backend request.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type requestIDKey struct{}

// ContextWithRequestID makes requests issued with ctx reuse id instead of a
// fresh UUID, so a façade request and its backend calls share one ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Client talks to the club administration backend.
//
// Create with [NewClient]. A Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	router  *router.Router
	log     zerolog.Logger
}

// NewClient creates a [Client] for cfg, resolving paths through r.
func NewClient(cfg config.BackendConfig, r *router.Router, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		router:  r,
		log:     log.With().Str("component", "backend").Logger(),
	}
}

// Router returns the router the client resolves paths with.
func (c *Client) Router() *router.Router {
	return c.router
}

// Get fetches one subject.
func (c *Client) Get(ctx context.Context, kind, id string) (*Subject, error) {
	path, err := c.router.DetailPath(kind, id)
	if err != nil {
		return nil, err
	}

	var subject Subject
	if err := c.do(ctx, http.MethodGet, path, nil, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

// List fetches every subject of a kind. Both a bare JSON array and a
// paginated {"results": [...]} envelope are accepted.
func (c *Client) List(ctx context.Context, kind string) ([]Subject, error) {
	path, err := c.router.ListPath(kind)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []Subject `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to decode %s list: %w", kind, err)
		}
		return page.Results, nil
	}

	var subjects []Subject
	if err := json.Unmarshal(trimmed, &subjects); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", kind, err)
	}
	return subjects, nil
}

// Approve posts an approval for the subject's current stage. The body is empty;
// the backend attributes the decision to the authenticated user.
func (c *Client) Approve(ctx context.Context, kind, id string) error {
	path, err := c.router.ActionPath(kind, id, router.ActionApprove)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Reject posts a rejection with comments for the subject's current stage.
func (c *Client) Reject(ctx context.Context, kind, id, comments string) error {
	path, err := c.router.ActionPath(kind, id, router.ActionReject)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, map[string]string{"comments": comments}, nil)
}

// FetchState fetches a subject and derives its [approval.State].
//
// A status_display that disagrees with the numeric status is logged; the
// numeric code wins.
func (c *Client) FetchState(ctx context.Context, kind, id string) (approval.State, error) {
	def, err := c.router.Stages(kind)
	if err != nil {
		return approval.State{}, err
	}

	subject, err := c.Get(ctx, kind, id)
	if err != nil {
		return approval.State{}, err
	}

	if subject.DisplayMismatch() {
		c.log.Warn().
			Str("subject", Key(kind, id)).
			Int("status", int(subject.Status)).
			Str("status_display", subject.StatusDisplay).
			Msg("status_display disagrees with status code, using status code")
	}

	return subject.State(def)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := requestID(ctx)
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("method", method).Str("path", path).Str("request_id", reqID).Msg("backend request failed")
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("backend %s %s: failed to read response: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend %s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
