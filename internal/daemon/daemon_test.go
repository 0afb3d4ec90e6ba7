package daemon

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"minionkernel/internal/config"
	"minionkernel/internal/datastore"
	"minionkernel/internal/flow"
	"minionkernel/internal/health"
	"minionkernel/internal/messaging"
	"minionkernel/internal/provider"
	"minionkernel/internal/registry"
	"minionkernel/internal/taskdag"
	"minionkernel/internal/warroom"
)

// fakeProvider is a scripted provider.Provider for exercising the daemon
// turn loop without a network round-trip.
type fakeProvider struct {
	caps      provider.Capabilities
	events    []provider.Event
	failSpawn bool
	failWrite bool
}

type fakeHandle struct{ id string }

func (h fakeHandle) ID() string { return h.id }

func (f *fakeProvider) Capabilities() provider.Capabilities { return f.caps }

func (f *fakeProvider) Spawn(ctx context.Context, cfg provider.AgentConfig) (provider.Handle, error) {
	if f.failSpawn {
		return nil, errTest
	}
	return fakeHandle{id: cfg.AgentName}, nil
}

func (f *fakeProvider) WritePrompt(ctx context.Context, h provider.Handle, text string) error {
	if f.failWrite {
		return errTest
	}
	return nil
}

func (f *fakeProvider) ReadStream(ctx context.Context, h provider.Handle) (<-chan provider.Event, error) {
	out := make(chan provider.Event, len(f.events))
	for _, e := range f.events {
		out <- e
	}
	close(out)
	return out, nil
}

func (f *fakeProvider) ExtractUsage(e provider.Event) (provider.Usage, bool) {
	if !e.IsUsageReport {
		return provider.Usage{}, false
	}
	u, ok := e.Raw.(provider.Usage)
	return u, ok
}

type testErr string

func (e testErr) Error() string { return string(e) }

const errTest = testErr("fake provider failure")

func newTestDaemon(t *testing.T) (*Daemon, *datastore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := datastore.Open(filepath.Join(dir, "kernel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	reg := registry.New(store, cfg)
	room := warroom.New(store)
	msgr := messaging.New(store, reg, room, "proj", filepath.Join(dir, "inbox"))
	loader := flow.NewLoader(filepath.Join(dir, "flows"))
	hp := health.NewMonitor(store, msgr, cfg.Health.WoundedPct, cfg.Health.CriticalPct, cfg.Health.AlertHigh, cfg.Health.AlertLow)
	engine := taskdag.New(store, loader, room, hp)

	fp := &fakeProvider{caps: provider.Capabilities{DefaultContextWindow: 200_000}}

	d := New("coder1", "coder", "test-model", "proj", Deps{
		Config:     cfg,
		Store:      store,
		Registry:   reg,
		Messages:   msgr,
		Tasks:      engine,
		Health:     hp,
		Provider:   fp,
		StateDir:   filepath.Join(dir, "state"),
		AlertDir:   filepath.Join(dir, "alerts"),
		StreamsDir: filepath.Join(dir, "streams"),
	})
	return d, store
}

func TestDaemonBootRegistersAgentAndWritesState(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	require.NoError(t, d.Boot(ctx, "test-transport"))

	s, err := ReadState(d.stateDir, "coder1")
	require.NoError(t, err)
	require.Equal(t, "idle", s.Status)
}

func TestDaemonRunTurnAppendsToBufferAndRecordsHP(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()
	require.NoError(t, d.Boot(ctx, "test-transport"))

	fp := d.prov.(*fakeProvider)
	fp.events = []provider.Event{
		{Text: "working on it"},
		{IsUsageReport: true, Raw: provider.Usage{TurnInputTokens: 500, TurnOutputTokens: 50}},
	}

	require.NoError(t, d.RunTurn(ctx, "do the task"))
	require.Greater(t, d.buffer.UsedTokens(), 0)
	require.Equal(t, 0, d.breaker.Consecutive())
}

func TestDaemonRunHoldsTurnWhileInterrupted(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()
	require.NoError(t, d.Boot(ctx, "test-transport"))
	require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
		return datastore.SetFlagTx(tx, "interrupt:coder1", "true", "test")
	}))

	turns := 0
	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := d.Run(runCtx, func(ctx context.Context, res *PollResult) error {
		turns++
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, turns)
}

func TestDaemonRunTurnTripsBreakerOnRepeatedFailure(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()
	require.NoError(t, d.Boot(ctx, "test-transport"))

	fp := d.prov.(*fakeProvider)
	fp.failWrite = true
	d.breaker = NewCircuitBreaker(2, d.cfg.Polling.RetryInitial, d.cfg.Polling.RetryMax)

	require.Error(t, d.RunTurn(ctx, "x"))
	require.Error(t, d.RunTurn(ctx, "x"))
	require.True(t, d.breaker.Tripped())
}
