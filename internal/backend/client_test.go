package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubflow/internal/approval"
	"clubflow/internal/config"
	"clubflow/internal/router"
)

// recordedRequest captures what the fake backend received.
type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   string(body),
		Header: r.Header.Clone(),
	})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeBackend) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) (*Client, *fakeBackend) {
	t.Helper()
	fake := &fakeBackend{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.BackendConfig{BaseURL: srv.URL + "/", Token: token, Timeout: 5 * time.Second}
	return NewClient(cfg, router.NewRouter(), zerolog.Nop()), fake
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Get(t *testing.T) {
	client, fake := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Subject{ID: 12, Title: "Spring Hackathon", ApprovalStage: 0})
	})

	subject, err := client.Get(context.Background(), "proposals", "12")

	require.NoError(t, err)
	assert.Equal(t, int64(12), subject.ID)
	assert.Equal(t, "Spring Hackathon", subject.Title)

	req := fake.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/proposals/12/", req.Path)
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get(RequestIDHeader))
}

func TestClient_NoTokenNoAuthorization(t *testing.T) {
	client, fake := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Subject{ID: 1})
	})

	_, err := client.Get(context.Background(), "bookings", "1")

	require.NoError(t, err)
	assert.Empty(t, fake.last().Header.Get("Authorization"))
}

func TestClient_RequestIDFromContext(t *testing.T) {
	client, fake := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Subject{ID: 1})
	})

	ctx := ContextWithRequestID(context.Background(), "req-42")
	_, err := client.Get(ctx, "bookings", "1")

	require.NoError(t, err)
	assert.Equal(t, "req-42", fake.last().Header.Get(RequestIDHeader))
}

func TestClient_Approve_EmptyBody(t *testing.T) {
	client, fake := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := client.Approve(context.Background(), "proposals", "12")

	require.NoError(t, err)
	req := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/proposals/12/approve/", req.Path)
	assert.Empty(t, req.Body)
}

func TestClient_Reject_SendsComments(t *testing.T) {
	client, fake := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"detail": "rejected"})
	})

	err := client.Reject(context.Background(), "bookings", "7", "Venue double-booked")

	require.NoError(t, err)
	req := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/bookings/7/reject/", req.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"comments":"Venue double-booked"}`, req.Body)
}

func TestClient_List(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare array", body: `[{"id":1},{"id":2}]`},
		{name: "paginated envelope", body: `{"count":2,"next":null,"results":[{"id":1},{"id":2}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fake := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			})

			subjects, err := client.List(context.Background(), "proposals")

			require.NoError(t, err)
			require.Len(t, subjects, 2)
			assert.Equal(t, int64(2), subjects[1].ID)
			assert.Equal(t, "/api/proposals/", fake.last().Path)
		})
	}
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "not your stage"})
	})

	err := client.Approve(context.Background(), "proposals", "12")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "not your stage")
	assert.Contains(t, err.Error(), "status 403")
}

func TestClient_UnknownKind(t *testing.T) {
	client, fake := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Get(context.Background(), "events", "1")

	assert.ErrorIs(t, err, router.ErrUnknownKind)
	assert.Empty(t, fake.requests, "no request is sent for an unknown kind")
}

func TestClient_FetchState(t *testing.T) {
	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Subject{
			ID:            12,
			Status:        0,
			StatusDisplay: "Approved",
			ApprovalStage: 1,
			Approvals:     []ApprovalRecord{{Stage: 0, ApproverName: "Dr. Smith", Status: 1}},
		})
	})

	state, err := client.FetchState(context.Background(), "proposals", "12")

	require.NoError(t, err)
	assert.Equal(t, approval.OutcomePending, state.Status, "numeric code wins over status_display")
	assert.Equal(t, 1, state.CurrentStage)
	require.Len(t, state.History, 1)
	assert.Equal(t, "Dr. Smith", state.History[0].ApproverName)
}

func TestClient_FetchState_Malformed(t *testing.T) {
	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Subject{ID: 12, ApprovalStage: 12})
	})

	_, err := client.FetchState(context.Background(), "proposals", "12")

	assert.ErrorIs(t, err, approval.ErrInvalidState)
}

func TestClient_Timeout(t *testing.T) {
	client, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "proposals", "12")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
