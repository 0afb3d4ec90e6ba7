// Package registry implements agent presence, registration, and context
// freshness: who exists, when they were last seen, and whether their
// context is fresh enough to send (spec.md §4.C).
package registry

import (
	"context"
	"time"

	"minionkernel/internal/config"
	"minionkernel/internal/datastore"
	"minionkernel/internal/kernelerr"
	"minionkernel/internal/logging"
)

// Liveness classifies an agent by how recently it was seen.
type Liveness string

const (
	Active Liveness = "active"
	Idle   Liveness = "idle"
	Dead   Liveness = "dead"
)

const (
	activeThreshold = 120 * time.Second
	idleThreshold   = 600 * time.Second
)

// LivenessOf derives a liveness classification from last_seen, per
// spec.md §4.C: active < 120s, idle < 600s, dead otherwise.
func LivenessOf(lastSeen time.Time, now time.Time) Liveness {
	age := now.Sub(lastSeen)
	switch {
	case age < activeThreshold:
		return Active
	case age < idleThreshold:
		return Idle
	default:
		return Dead
	}
}

// Registry wires the datastore to agent presence operations.
type Registry struct {
	store *datastore.Store
	cfg   *config.Config
}

// New builds a Registry over store using cfg's staleness windows.
func New(store *datastore.Store, cfg *config.Config) *Registry {
	return &Registry{store: store, cfg: cfg}
}

// Register is idempotent on name: register(register(A,C)) == register(A,C)
// (spec.md testable property 10).
func (r *Registry) Register(ctx context.Context, name, class, model, transport string) (*datastore.Agent, error) {
	a, err := r.store.Register(ctx, name, class, model, transport)
	if err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryRegistry).Info("agent registered", map[string]interface{}{"name": name, "class": class})
	return a, nil
}

// Deregister removes an agent's record.
func (r *Registry) Deregister(ctx context.Context, name string) error {
	return r.store.Deregister(ctx, name)
}

// Rename changes an agent's name, lead-only at the command layer.
func (r *Registry) Rename(ctx context.Context, oldName, newName string) error {
	return r.store.Rename(ctx, oldName, newName)
}

// SetContext records a fresh context summary, optionally switching HP mode
// to self-reported when hp is supplied (spec.md §4.C).
func (r *Registry) SetContext(ctx context.Context, name, summary string, selfReportedHP bool) error {
	mode := ""
	if selfReportedHP {
		mode = "self-reported"
	}
	return r.store.SetContext(ctx, name, summary, mode)
}

// SetStatus records an agent's free-text status.
func (r *Registry) SetStatus(ctx context.Context, name, status string) error {
	return r.store.SetStatus(ctx, name, status)
}

// WhoEntry is one row of the who() listing, enriched with computed
// liveness.
type WhoEntry struct {
	Agent    *datastore.Agent
	Liveness Liveness
}

// Who returns every registered agent with computed liveness.
func (r *Registry) Who(ctx context.Context) ([]WhoEntry, error) {
	agents, err := r.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]WhoEntry, 0, len(agents))
	for _, a := range agents {
		out = append(out, WhoEntry{Agent: a, Liveness: LivenessOf(a.LastSeen, now)})
	}
	return out, nil
}

// CheckFreshness returns nil if agent name's context is fresh enough to
// send, or a StaleContext error naming the observed age and remedy
// (spec.md testable property 7).
func (r *Registry) CheckFreshness(ctx context.Context, name string) error {
	a, err := r.store.GetAgent(ctx, name)
	if err != nil {
		return err
	}
	window := r.cfg.StalenessFor(a.Class)
	age := time.Since(a.ContextUpdatedAt)
	if age > window {
		return kernelerr.New(kernelerr.StaleContext,
			"context must be refreshed within the class staleness window",
			age.String()+" since last set_context, window is "+window.String(),
			"call set_context before sending")
	}
	return nil
}

// CheckActivity touches last_seen, used by the check_activity command to
// record that the process is alive independent of context freshness.
func (r *Registry) CheckActivity(ctx context.Context, name string) error {
	return r.store.TouchLastSeen(ctx, name)
}
