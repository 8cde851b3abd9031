package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubflow/internal/approval"
	"clubflow/internal/backend"
	"clubflow/internal/config"
	"clubflow/internal/lifecycle"
	"clubflow/internal/router"
)

// memoryBackend serves states from memory and applies decisions with the
// default gate.
type memoryBackend struct {
	mu     sync.Mutex
	states map[string]approval.State
	err    error
}

func (m *memoryBackend) FetchState(_ context.Context, kind, id string) (approval.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return approval.State{}, m.err
	}
	s, ok := m.states[backend.Key(kind, id)]
	if !ok {
		return approval.State{}, &backend.APIError{Method: "GET", Path: "/" + kind + "/" + id + "/", StatusCode: http.StatusNotFound}
	}
	return s.Clone(), nil
}

func (m *memoryBackend) Approve(_ context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := backend.Key(kind, id)
	next, err := approval.ApplyApprove(approval.DefaultStages(), m.states[key], "server")
	if err != nil {
		return err
	}
	m.states[key] = next
	return nil
}

func (m *memoryBackend) Reject(_ context.Context, kind, id, comments string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := backend.Key(kind, id)
	next, err := approval.ApplyReject(m.states[key], "server", comments)
	if err != nil {
		return err
	}
	m.states[key] = next
	return nil
}

func newTestServer(t *testing.T, states map[string]approval.State) (*httptest.Server, *memoryBackend) {
	t.Helper()
	mem := &memoryBackend{states: states}
	exec := lifecycle.NewExecutor(mem, mem, zerolog.Nop())
	exec.SetGate(approval.NewGate(approval.WithClock(func() time.Time {
		return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	})))

	cfg := config.DefaultConfig().Server
	srv := httptest.NewServer(NewServer(exec, router.NewRouter(), cfg, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv, mem
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"), "request id is echoed")
	assert.Equal(t, "ok", decodeBody[map[string]string](t, resp)["status"])
}

func TestListKinds(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/kinds")
	require.NoError(t, err)

	kinds := decodeBody[[]kindResponse](t, resp)
	require.Len(t, kinds, 2)
	assert.Equal(t, "bookings", kinds[0].Kind)
	assert.Equal(t, approval.DefaultStageNames, kinds[1].Stages)
}

func TestGetSubject(t *testing.T) {
	srv, _ := newTestServer(t, map[string]approval.State{
		"proposals/12": approval.NewState(),
	})

	resp, err := http.Get(srv.URL + "/api/v1/proposals/12")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[subjectResponse](t, resp)
	assert.Equal(t, "pending", body.Status)
	assert.True(t, body.CanDecide)
	require.Len(t, body.Stages, 5)
	assert.Equal(t, approval.SemanticActive, body.Stages[0].Semantic)
	assert.Equal(t, approval.SemanticNotStarted, body.Stages[1].Semantic)
	assert.Equal(t, 0, body.Completed)
	assert.Equal(t, 5, body.Total)
}

func TestApproveThenReject(t *testing.T) {
	srv, mem := newTestServer(t, map[string]approval.State{
		"proposals/12": approval.NewState(),
	})

	resp := post(t, srv.URL+"/api/v1/proposals/12/approve", `{"approver":"Dr. Smith"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[subjectResponse](t, resp)
	assert.Equal(t, 1, body.Stage)
	assert.False(t, body.Mismatch)

	resp = post(t, srv.URL+"/api/v1/proposals/12/reject", `{"approver":"Council","comments":"Budget insufficient"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody[subjectResponse](t, resp)
	assert.Equal(t, "rejected", body.Status)
	assert.False(t, body.CanDecide)
	assert.Equal(t, approval.SemanticFailed, body.Stages[1].Semantic)
	assert.Equal(t, approval.SemanticSkipped, body.Stages[4].Semantic)
	require.Len(t, body.History, 2)
	assert.Equal(t, "Faculty Advisor", body.History[1].Stage)

	assert.Equal(t, approval.OutcomeRejected, mem.states["proposals/12"].Status)
}

func TestErrorMapping(t *testing.T) {
	approved := approval.State{Status: approval.OutcomeApproved, CurrentStage: 4}
	for i := 0; i < 5; i++ {
		approved.History = append(approved.History, approval.StageRecord{StageIndex: i, Outcome: approval.OutcomeApproved})
	}

	tests := []struct {
		name   string
		path   string
		body   string
		states map[string]approval.State
		want   int
	}{
		{
			name:   "reject without comments",
			path:   "/api/v1/proposals/1/reject",
			body:   `{"approver":"x","comments":"  "}`,
			states: map[string]approval.State{"proposals/1": approval.NewState()},
			want:   http.StatusBadRequest,
		},
		{
			name:   "approve a terminal subject",
			path:   "/api/v1/proposals/1/approve",
			body:   `{}`,
			states: map[string]approval.State{"proposals/1": approved},
			want:   http.StatusConflict,
		},
		{
			name: "unknown kind",
			path: "/api/v1/events/1/approve",
			body: `{}`,
			want: http.StatusNotFound,
		},
		{
			name:   "malformed upstream state",
			path:   "/api/v1/proposals/1/approve",
			body:   `{}`,
			states: map[string]approval.State{"proposals/1": {CurrentStage: 42}},
			want:   http.StatusBadGateway,
		},
		{
			name: "upstream not found",
			path: "/api/v1/proposals/404/approve",
			body: `{}`,
			want: http.StatusNotFound,
		},
		{
			name: "invalid json",
			path: "/api/v1/proposals/1/approve",
			body: `{"approver":`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := tt.states
			if states == nil {
				states = map[string]approval.State{}
			}
			srv, _ := newTestServer(t, states)

			resp := post(t, srv.URL+tt.path, tt.body)

			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, decodeBody[map[string]string](t, resp)["error"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", approval.ErrMissingComment), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", approval.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("wrap: %w", lifecycle.ErrTransitionInFlight), http.StatusConflict},
		{fmt.Errorf("wrap: %w", router.ErrUnknownKind), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", approval.ErrInvalidState), http.StatusBadGateway},
		{&backend.APIError{StatusCode: http.StatusForbidden}, http.StatusBadGateway},
		{&backend.APIError{StatusCode: http.StatusNotFound}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/kinds", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.edu")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
