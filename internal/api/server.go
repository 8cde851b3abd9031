// Package api exposes approval chains over HTTP for dashboards.
//
// The server is a thin JSON façade: it projects subject state into the
// stepper render model and forwards approve/reject decisions through the
// [lifecycle.Executor]. Dashboards render the semantic of each stage and
// never reimplement the chain rules.
//
// Routes:
//
//	GET  /health
//	GET  /api/v1/kinds
//	GET  /api/v1/{kind}/{id}
//	POST /api/v1/{kind}/{id}/approve   {"approver": "..."}
//	POST /api/v1/{kind}/{id}/reject    {"approver": "...", "comments": "..."}
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"clubflow/internal/approval"
	"clubflow/internal/backend"
	"clubflow/internal/config"
	"clubflow/internal/lifecycle"
	"clubflow/internal/router"
)

// Executor is the subset of [lifecycle.Executor] the server needs.
type Executor interface {
	Preview(ctx context.Context, kind, id string) (*lifecycle.Result, error)
	Approve(ctx context.Context, kind, id, approver string) (*lifecycle.Result, error)
	Reject(ctx context.Context, kind, id, approver, comments string) (*lifecycle.Result, error)
}

// Server serves the approval façade.
type Server struct {
	exec   Executor
	router *router.Router
	cfg    config.ServerConfig
	log    zerolog.Logger
}

// NewServer creates a [Server].
func NewServer(exec Executor, r *router.Router, cfg config.ServerConfig, log zerolog.Logger) *Server {
	return &Server{
		exec:   exec,
		router: r,
		cfg:    cfg,
		log:    log.With().Str("component", "api").Logger(),
	}
}

// Handler builds the HTTP handler with all routes and middleware mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", backend.RequestIDHeader},
		ExposedHeaders:   []string{backend.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/kinds", s.listKinds)
		r.Route("/{kind}/{id}", func(r chi.Router) {
			r.Get("/", s.getSubject)
			r.Post("/approve", s.approve)
			r.Post("/reject", s.reject)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		w.Header().Set(backend.RequestIDHeader, reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", reqID).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// subjectResponse is the JSON body for a subject.
type subjectResponse struct {
	Kind      string               `json:"kind"`
	ID        string               `json:"id"`
	Status    string               `json:"status"`
	Stage     int                  `json:"current_stage"`
	CanDecide bool                 `json:"can_decide"`
	Completed int                  `json:"completed"`
	Total     int                  `json:"total"`
	Stages    []approval.StageView `json:"stages"`
	History   []historyEntry       `json:"history"`
	Mismatch  bool                 `json:"mismatch,omitempty"`
}

type historyEntry struct {
	Stage     string    `json:"stage"`
	Outcome   string    `json:"outcome"`
	Approver  string    `json:"approver"`
	Comments  string    `json:"comments,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type kindResponse struct {
	Kind   string   `json:"kind"`
	Title  string   `json:"title"`
	Stages []string `json:"stages"`
	Roles  []string `json:"roles,omitempty"`
}

type decisionRequest struct {
	Approver string `json:"approver"`
	Comments string `json:"comments"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listKinds(w http.ResponseWriter, r *http.Request) {
	kinds := s.router.Kinds()
	resp := make([]kindResponse, 0, len(kinds))
	for _, kind := range kinds {
		route, err := s.router.Route(kind)
		if err != nil {
			continue
		}
		resp = append(resp, kindResponse{
			Kind:   route.Kind,
			Title:  route.Title,
			Stages: route.Stages.Names(),
			Roles:  route.Roles,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getSubject(w http.ResponseWriter, r *http.Request) {
	kind, id := chi.URLParam(r, "kind"), chi.URLParam(r, "id")
	res, err := s.exec.Preview(s.backendContext(r), kind, id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeResult(w, r, res)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	kind, id := chi.URLParam(r, "kind"), chi.URLParam(r, "id")
	var req decisionRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.exec.Approve(s.backendContext(r), kind, id, req.Approver)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeResult(w, r, res)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	kind, id := chi.URLParam(r, "kind"), chi.URLParam(r, "id")
	var req decisionRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.exec.Reject(s.backendContext(r), kind, id, req.Approver, req.Comments)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeResult(w, r, res)
}

// backendContext forwards the façade request ID to backend calls.
func (s *Server) backendContext(r *http.Request) context.Context {
	return backend.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *lifecycle.Result) {
	current := res.Current()
	views, err := approval.Project(res.Stages, current)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	completed, total := approval.Progress(views)

	history := make([]historyEntry, len(current.History))
	for i, h := range current.History {
		history[i] = historyEntry{
			Stage:     res.Stages.Name(h.StageIndex),
			Outcome:   h.Outcome.String(),
			Approver:  h.ApproverName,
			Comments:  h.Comments,
			Timestamp: h.Timestamp,
		}
	}

	writeJSON(w, http.StatusOK, subjectResponse{
		Kind:      res.Kind,
		ID:        res.ID,
		Status:    current.Status.String(),
		Stage:     current.CurrentStage,
		CanDecide: approval.CanApprove(current),
		Completed: completed,
		Total:     total,
		Stages:    views,
		History:   history,
		Mismatch:  res.Mismatch,
	})
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, approval.ErrMissingComment):
		return http.StatusBadRequest
	case errors.Is(err, approval.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrTransitionInFlight):
		return http.StatusConflict
	case errors.Is(err, router.ErrUnknownKind):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	evt := s.log.Warn()
	if code >= http.StatusInternalServerError {
		evt = s.log.Error()
	}
	evt.Err(err).Str("request_id", middleware.GetReqID(r.Context())).Int("status", code).Msg("request failed")
	writeError(w, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
