package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clubflow/internal/approval"
	"clubflow/internal/backend"
	"clubflow/internal/config"
	"clubflow/internal/output"
	"clubflow/internal/router"
	"clubflow/internal/status"
)

// Decision records a decision submitted to the mock backend.
type Decision struct {
	Key      string
	Action   string
	Comments string
}

// MockBackend is an in-memory backend for testing.
//
// Subjects are stored in the backend read shape. Decisions are applied with
// the approval gate, as the real backend does, unless OverrideAfter is set.
type MockBackend struct {
	mu sync.Mutex

	// Subjects maps "kind/id" to the stored subject.
	Subjects map[string]backend.Subject
	// Decisions records every approve/reject call in order.
	Decisions []Decision
	// FailOn makes decisions for the given key fail with a 500.
	FailOn string
	// OverrideAfter replaces the subject after any decision when set.
	OverrideAfter *backend.Subject
}

// NewMockBackend creates a [MockBackend] seeded with subjects.
func NewMockBackend(subjects map[string]backend.Subject) *MockBackend {
	if subjects == nil {
		subjects = make(map[string]backend.Subject)
	}
	return &MockBackend{Subjects: subjects}
}

func (m *MockBackend) Get(_ context.Context, kind, id string) (*backend.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := backend.Key(kind, id)
	s, ok := m.Subjects[key]
	if !ok {
		return nil, &backend.APIError{Method: http.MethodGet, Path: "/api/" + key + "/", StatusCode: http.StatusNotFound}
	}
	return &s, nil
}

func (m *MockBackend) List(_ context.Context, kind string) ([]backend.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []backend.Subject
	prefix := kind + "/"
	for key, s := range m.Subjects {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockBackend) FetchState(ctx context.Context, kind, id string) (approval.State, error) {
	s, err := m.Get(ctx, kind, id)
	if err != nil {
		return approval.State{}, err
	}
	return s.State(approval.DefaultStages())
}

func (m *MockBackend) Approve(_ context.Context, kind, id string) error {
	return m.decide(kind, id, "approve", "", func(s approval.State) (approval.State, error) {
		return mockGate.ApplyApprove(approval.DefaultStages(), s, "backend")
	})
}

func (m *MockBackend) Reject(_ context.Context, kind, id, comments string) error {
	return m.decide(kind, id, "reject", comments, func(s approval.State) (approval.State, error) {
		return mockGate.ApplyReject(s, "backend", comments)
	})
}

func (m *MockBackend) decide(kind, id, action, comments string, apply func(approval.State) (approval.State, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := backend.Key(kind, id)
	m.Decisions = append(m.Decisions, Decision{Key: key, Action: action, Comments: comments})
	if m.FailOn == key {
		return &backend.APIError{Method: http.MethodPost, Path: "/api/" + key + "/" + action + "/", StatusCode: http.StatusInternalServerError}
	}

	subject, ok := m.Subjects[key]
	if !ok {
		return fmt.Errorf("mock backend: no subject %s", key)
	}
	state, err := subject.State(approval.DefaultStages())
	if err != nil {
		return err
	}
	next, err := apply(state)
	if err != nil {
		return err
	}

	if m.OverrideAfter != nil {
		m.Subjects[key] = *m.OverrideAfter
		return nil
	}
	updated := backend.FromState(subject.ID, next)
	updated.Title = subject.Title
	updated.ClubName = subject.ClubName
	m.Subjects[key] = updated
	return nil
}

var mockGate = approval.NewGate(approval.WithClock(func() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}))

// newTestApp builds an [App] around a mock backend with output captured in a buffer.
func newTestApp(t *testing.T, mock *MockBackend) (*App, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return &App{
		Config:  config.DefaultConfig(),
		Router:  router.NewRouter(),
		Backend: mock,
		Printer: output.NewPrinterWithWriter(buf),
		Logger:  zerolog.Nop(),
	}, buf
}

// runCommand runs args through a fresh command tree.
func runCommand(app *App, args ...string) ExecuteResult {
	return run(app, args)
}

// subjectAt returns a pending subject with stages [0, stage) approved.
func subjectAt(id int64, stage int) backend.Subject {
	s := approval.State{Status: approval.OutcomePending, CurrentStage: stage}
	for i := 0; i < stage; i++ {
		s.History = append(s.History, approval.StageRecord{
			StageIndex:   i,
			Outcome:      approval.OutcomeApproved,
			ApproverName: fmt.Sprintf("approver-%d", i),
			Timestamp:    time.Date(2026, 3, 10+i, 9, 0, 0, 0, time.UTC),
		})
	}
	return backend.FromState(id, s)
}

// approvedSubject returns a subject with every default stage approved.
func approvedSubject(id int64) backend.Subject {
	s := subjectAt(id, 4)
	s.Approvals = append(s.Approvals, backend.ApprovalRecord{Stage: 4, ApproverName: "security", Status: status.StatusApproved})
	s.Status = status.StatusApproved
	s.StatusDisplay = status.StatusApproved.String()
	return s
}
