// Package router maps subject kinds to their approval chains and backend paths.
//
// Every subject the administration backend routes through approvals belongs to
// a kind: "proposals" for event proposals, "bookings" for venue bookings. The
// router knows, for each kind, the ordered stage chain, the approver role per
// stage, and where the backend exposes the collection. It is the single place
// that builds approve/reject URLs, so callers never concatenate paths.
//
// Routing can be driven by configuration ([NewRouterFromConfig]) or by a stage
// manifest ([NewRouterFromManifest]); [Router.ApplyManifest] overlays a
// manifest onto a configured router.
//
// Key types:
//   - [Router] - Kind-to-route table
//   - [Route] - The chain and paths of one kind
//   - [Action] - approve or reject
//
// Package-level functions [Stages] and [Kinds] use the default router built
// from [config.DefaultConfig].
package router

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"clubflow/internal/approval"
	"clubflow/internal/config"
	"clubflow/internal/manifest"
)

// Sentinel errors for routing.
var (
	// ErrUnknownKind indicates the subject kind has no route. Callers should
	// report this as a usage error; it usually means a typo on the command line.
	ErrUnknownKind = errors.New("unknown subject kind")

	// ErrUnknownAction indicates an action other than approve or reject.
	ErrUnknownAction = errors.New("unknown action")
)

// Action is a transition request sent to the backend.
type Action string

const (
	// ActionApprove advances the subject past its current stage.
	ActionApprove Action = "approve"

	// ActionReject ends the chain at the current stage.
	ActionReject Action = "reject"
)

// Route describes the approval chain and backend location of one kind.
type Route struct {
	// Kind is the backend collection name (e.g., "proposals").
	Kind string

	// Title is the human-readable name of the kind.
	Title string

	// Path is the backend collection path without a trailing slash.
	Path string

	// Stages is the approval chain.
	Stages approval.StageDefinition

	// Roles lists the approver role per stage. May be shorter than Stages.
	Roles []string
}

// Role returns the approver role of stage i, or "" if none is declared.
func (r Route) Role(i int) string {
	if i < 0 || i >= len(r.Roles) {
		return ""
	}
	return r.Roles[i]
}

// Router routes subject kinds to [Route] values.
//
// Create with [NewRouter], [NewRouterFromConfig] or [NewRouterFromManifest].
// A Router is read-only after construction and safe for concurrent use.
type Router struct {
	routes map[string]Route

	// order lists kinds in presentation order.
	order []string
}

// NewRouter creates a [Router] from [config.DefaultConfig]: proposals and
// bookings, both with the five-stage university chain.
func NewRouter() *Router {
	r, err := NewRouterFromConfig(config.DefaultConfig())
	if err != nil {
		// The default configuration is static and always valid.
		panic(err)
	}
	return r
}

// NewRouterFromConfig creates a [Router] from the workflows section of cfg.
//
// Kinds are ordered alphabetically. Returns [approval.ErrInvalidConfiguration]
// if any kind declares no stages or duplicate stages.
func NewRouterFromConfig(cfg *config.Config) (*Router, error) {
	r := &Router{routes: make(map[string]Route, len(cfg.Workflows))}

	kinds := make([]string, 0, len(cfg.Workflows))
	for kind := range cfg.Workflows {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		wf := cfg.Workflows[kind]
		stages, err := approval.NewStageDefinition(wf.Stages...)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", kind, err)
		}

		title := wf.Title
		if title == "" {
			title = kind
		}
		r.add(Route{
			Kind:   kind,
			Title:  title,
			Path:   normalizePath(wf.Path, kind),
			Stages: stages,
			Roles:  wf.Roles,
		})
	}

	return r, nil
}

// NewRouterFromManifest creates a [Router] from a stage manifest.
//
// Kinds keep their manifest order. Each kind's backend path defaults to
// /api/{kind}.
func NewRouterFromManifest(m *manifest.Manifest) (*Router, error) {
	r := &Router{routes: make(map[string]Route)}
	if err := r.ApplyManifest(m); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyManifest replaces the chains of the kinds declared in m.
//
// Existing kinds keep their title and path; kinds unknown to the router are
// added with the default /api/{kind} path.
func (r *Router) ApplyManifest(m *manifest.Manifest) error {
	for _, kind := range m.Kinds() {
		entries := m.EntriesForKind(kind)
		roles := make([]string, len(entries))
		for i, e := range entries {
			roles[i] = e.Role
		}

		stages, err := approval.NewStageDefinition(m.StageNames(kind)...)
		if err != nil {
			return fmt.Errorf("manifest kind %q: %w", kind, err)
		}

		route, ok := r.routes[kind]
		if !ok {
			route = Route{Kind: kind, Title: kind, Path: normalizePath("", kind)}
		}
		route.Stages = stages
		route.Roles = roles
		r.add(route)
	}
	return nil
}

func (r *Router) add(route Route) {
	if _, exists := r.routes[route.Kind]; !exists {
		r.order = append(r.order, route.Kind)
	}
	r.routes[route.Kind] = route
}

// Kinds returns the routed kinds in presentation order.
func (r *Router) Kinds() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Route returns the [Route] of a kind, or [ErrUnknownKind].
func (r *Router) Route(kind string) (Route, error) {
	route, ok := r.routes[kind]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return route, nil
}

// Stages returns the approval chain of a kind, or [ErrUnknownKind].
func (r *Router) Stages(kind string) (approval.StageDefinition, error) {
	route, err := r.Route(kind)
	if err != nil {
		return approval.StageDefinition{}, err
	}
	return route.Stages, nil
}

// ListPath returns the collection path of a kind, e.g. /api/proposals/.
func (r *Router) ListPath(kind string) (string, error) {
	route, err := r.Route(kind)
	if err != nil {
		return "", err
	}
	return route.Path + "/", nil
}

// DetailPath returns the resource path of one subject, e.g. /api/proposals/12/.
func (r *Router) DetailPath(kind, id string) (string, error) {
	route, err := r.Route(kind)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%s: subject id is required", kind)
	}
	return route.Path + "/" + url.PathEscape(id) + "/", nil
}

// ActionPath returns the transition path of one subject, e.g.
// /api/proposals/12/approve/.
func (r *Router) ActionPath(kind, id string, action Action) (string, error) {
	if action != ActionApprove && action != ActionReject {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	detail, err := r.DetailPath(kind, id)
	if err != nil {
		return "", err
	}
	return detail + string(action) + "/", nil
}

func normalizePath(path, kind string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "/api/" + kind
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(path, "/")
}

// defaultRouter is the package-level router used by the convenience functions.
var defaultRouter = NewRouter()

// Stages returns the default approval chain of a kind.
//
// This package-level function uses the router built from
// [config.DefaultConfig]. For configured or manifest-driven routing, create a
// [Router] and call its Stages method.
func Stages(kind string) (approval.StageDefinition, error) {
	return defaultRouter.Stages(kind)
}

// Kinds returns the kinds known to the default router.
func Kinds() []string {
	return defaultRouter.Kinds()
}
