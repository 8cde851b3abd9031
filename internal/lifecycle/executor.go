// Package lifecycle drives approval transitions against the backend and
// reconciles the result.
//
// The [Executor] asks the approval gate what the next state should be (the
// optimistic overlay), submits the decision to the backend, then re-reads the
// subject. The server's answer always replaces the overlay; when the two
// disagree the [Result] is flagged as a mismatch so callers can surface it.
//
// Key concepts:
//   - Chains are resolved per kind by [router.Router]
//   - Current state is read via [StateReader]
//   - Decisions are submitted via [ActionSubmitter]
//   - Batch progress can be tracked via [ProgressCallback]
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"clubflow/internal/approval"
	"clubflow/internal/backend"
	"clubflow/internal/router"
)

// ErrTransitionInFlight indicates another transition for the same subject is
// still waiting on the backend.
var ErrTransitionInFlight = errors.New("transition already in flight")

// StateReader looks up the authoritative state of a subject.
//
// The [backend.Client] type implements this interface.
type StateReader interface {
	FetchState(ctx context.Context, kind, id string) (approval.State, error)
}

// ActionSubmitter sends approve and reject decisions to the backend.
//
// The [backend.Client] type implements this interface.
type ActionSubmitter interface {
	Approve(ctx context.Context, kind, id string) error
	Reject(ctx context.Context, kind, id, comments string) error
}

// ProgressCallback is invoked before each subject of a batch is processed.
//
// The callback receives the subject index (1-based), the batch size and the
// subject ID.
type ProgressCallback func(index, total int, id string)

// Result describes one transition attempt.
type Result struct {
	Kind string
	ID   string

	// Stages is the chain the states were validated against.
	Stages approval.StageDefinition

	// Before is the server state read before the decision.
	Before approval.State

	// Optimistic is the state the gate predicted. Zero for previews.
	Optimistic approval.State

	// Authoritative is the server state read after the decision. For
	// previews it equals Before.
	Authoritative approval.State

	// Mismatch is true when the server disagrees with the prediction.
	Mismatch bool
}

// Current returns the state callers should display.
func (r *Result) Current() approval.State {
	return r.Authoritative
}

// Executor submits approval decisions and reconciles the backend's answer.
//
// Executor uses dependency injection for testability: [StateReader] reads
// state and [ActionSubmitter] sends decisions. Use [NewExecutor] to create an
// instance.
type Executor struct {
	reader           StateReader
	submitter        ActionSubmitter
	router           *router.Router
	gate             *approval.Gate
	log              zerolog.Logger
	progressCallback ProgressCallback

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewExecutor creates a new Executor.
//
// Chains come from the default router and the gate uses the wall clock;
// override with [Executor.SetRouter] and [Executor.SetGate].
func NewExecutor(reader StateReader, submitter ActionSubmitter, log zerolog.Logger) *Executor {
	return &Executor{
		reader:    reader,
		submitter: submitter,
		gate:      approval.NewGate(),
		log:       log.With().Str("component", "lifecycle").Logger(),
		inFlight:  make(map[string]struct{}),
	}
}

// SetRouter configures the [router.Router] used to resolve chains.
//
// If not set (or set to nil), the package-level router functions are used.
func (e *Executor) SetRouter(r *router.Router) {
	e.router = r
}

// SetGate replaces the transition gate, typically to inject a clock.
func (e *Executor) SetGate(g *approval.Gate) {
	if g != nil {
		e.gate = g
	}
}

// SetProgressCallback configures an optional progress callback for
// [Executor.ApproveAll].
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

func (e *Executor) stages(kind string) (approval.StageDefinition, error) {
	if e.router != nil {
		return e.router.Stages(kind)
	}
	return router.Stages(kind)
}

// Preview reads a subject without changing it.
func (e *Executor) Preview(ctx context.Context, kind, id string) (*Result, error) {
	def, err := e.stages(kind)
	if err != nil {
		return nil, err
	}

	state, err := e.reader.FetchState(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	return &Result{
		Kind:          kind,
		ID:            id,
		Stages:        def,
		Before:        state,
		Authoritative: state,
	}, nil
}

// Plan returns the state an approval would produce without submitting it.
//
// This is the dry-run counterpart of [Executor.Approve].
func (e *Executor) Plan(ctx context.Context, kind, id, approver string) (*Result, error) {
	res, err := e.Preview(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	optimistic, err := e.gate.ApplyApprove(res.Stages, res.Before, approver)
	if err != nil {
		return nil, err
	}
	res.Optimistic = optimistic
	return res, nil
}

// Approve approves the current stage of a subject.
//
// The gate is consulted before anything is sent: terminal subjects fail with
// [approval.ErrInvalidTransition] and no request reaches the backend.
func (e *Executor) Approve(ctx context.Context, kind, id, approver string) (*Result, error) {
	return e.transition(ctx, kind, id, "approve",
		func(def approval.StageDefinition, s approval.State) (approval.State, error) {
			return e.gate.ApplyApprove(def, s, approver)
		},
		func() error {
			return e.submitter.Approve(ctx, kind, id)
		},
	)
}

// Reject rejects the current stage of a subject.
//
// Blank comments fail with [approval.ErrMissingComment] before anything is
// sent.
func (e *Executor) Reject(ctx context.Context, kind, id, approver, comments string) (*Result, error) {
	return e.transition(ctx, kind, id, "reject",
		func(_ approval.StageDefinition, s approval.State) (approval.State, error) {
			return e.gate.ApplyReject(s, approver, comments)
		},
		func() error {
			return e.submitter.Reject(ctx, kind, id, comments)
		},
	)
}

type applyFunc func(def approval.StageDefinition, s approval.State) (approval.State, error)

func (e *Executor) transition(ctx context.Context, kind, id, action string, apply applyFunc, submit func() error) (*Result, error) {
	key := backend.Key(kind, id)
	if err := e.acquire(key); err != nil {
		return nil, err
	}
	defer e.release(key)

	res, err := e.Preview(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	optimistic, err := apply(res.Stages, res.Before)
	if err != nil {
		return nil, err
	}
	res.Optimistic = optimistic

	log := e.log.With().Str("subject", key).Str("action", action).Logger()
	log.Debug().Int("stage", res.Before.CurrentStage).Msg("submitting decision")

	if err := submit(); err != nil {
		log.Error().Err(err).Msg("backend refused decision")
		return nil, fmt.Errorf("%s %s: %w", action, key, err)
	}

	authoritative, err := e.reader.FetchState(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("%s %s: decision sent but re-read failed: %w", action, key, err)
	}
	res.Authoritative = authoritative
	res.Mismatch = mismatch(optimistic, authoritative)

	if err := approval.CheckAdvance(res.Before, authoritative); err != nil {
		log.Warn().Err(err).Msg("server state moved unexpectedly")
		res.Mismatch = true
	}
	if res.Mismatch {
		log.Warn().
			Str("expected", optimistic.Status.String()).
			Int("expected_stage", optimistic.CurrentStage).
			Str("actual", authoritative.Status.String()).
			Int("actual_stage", authoritative.CurrentStage).
			Msg("server state differs from optimistic overlay")
	} else {
		log.Info().Str("status", authoritative.Status.String()).Int("stage", authoritative.CurrentStage).Msg("decision applied")
	}

	return res, nil
}

// mismatch compares the parts of a state the server is expected to agree on.
// Once Approved, the backend may park the stage index past the last stage.
func mismatch(optimistic, authoritative approval.State) bool {
	if optimistic.Status != authoritative.Status {
		return true
	}
	if optimistic.Status == approval.OutcomeApproved {
		return false
	}
	return optimistic.CurrentStage != authoritative.CurrentStage
}

func (e *Executor) acquire(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[key]; busy {
		return fmt.Errorf("%w: %s", ErrTransitionInFlight, key)
	}
	e.inFlight[key] = struct{}{}
	return nil
}

func (e *Executor) release(key string) {
	e.mu.Lock()
	delete(e.inFlight, key)
	e.mu.Unlock()
}

// ApproveAll approves the current stage of each subject in order.
//
// ApproveAll is fail-fast: it stops at the first error and returns the
// results gathered so far along with it. Context cancellation is checked
// between subjects.
func (e *Executor) ApproveAll(ctx context.Context, kind string, ids []string, approver string) ([]*Result, error) {
	results := make([]*Result, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if e.progressCallback != nil {
			e.progressCallback(i+1, len(ids), id)
		}

		res, err := e.Approve(ctx, kind, id, approver)
		if err != nil {
			return results, fmt.Errorf("%s: %w", backend.Key(kind, id), err)
		}
		results = append(results, res)
	}
	return results, nil
}
