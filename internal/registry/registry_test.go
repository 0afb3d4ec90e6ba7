package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"minionkernel/internal/config"
	"minionkernel/internal/datastore"
	"minionkernel/internal/kernelerr"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := datastore.Open(filepath.Join(t.TempDir(), "kernel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, config.DefaultConfig())
}

func TestLivenessOfThresholds(t *testing.T) {
	now := time.Now()
	require.Equal(t, Active, LivenessOf(now.Add(-30*time.Second), now))
	require.Equal(t, Idle, LivenessOf(now.Add(-300*time.Second), now))
	require.Equal(t, Dead, LivenessOf(now.Add(-3600*time.Second), now))
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a1, err := r.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)
	a2, err := r.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)
	require.Equal(t, a1.Name, a2.Name)
	require.Equal(t, a1.Class, a2.Class)

	who, err := r.Who(ctx)
	require.NoError(t, err)
	require.Len(t, who, 1)
}

func TestCheckFreshnessPassesRightAfterRegister(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	_, err := r.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)

	// context_updated_at defaults to registration time, which is fresh.
	require.NoError(t, r.CheckFreshness(ctx, "coder1"))
}

func TestSetContextSelfReportedHPSwitchesMode(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	_, err := r.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)

	require.NoError(t, r.SetContext(ctx, "coder1", "working on task X", true))

	agents, err := r.store.ListAgents(ctx)
	require.NoError(t, err)
	require.Equal(t, "self-reported", agents[0].HPMode)
}

func TestCheckFreshnessErrorIsStaleContext(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	_, err := r.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)

	// Force context_updated_at far enough in the past to exceed any class window.
	_, execErr := r.store.DB().ExecContext(ctx, `UPDATE agents SET context_updated_at = 0 WHERE name = 'coder1'`)
	require.NoError(t, execErr)

	err = r.CheckFreshness(ctx, "coder1")
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.StaleContext))
}
