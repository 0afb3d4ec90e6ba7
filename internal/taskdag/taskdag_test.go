package taskdag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"minionkernel/internal/config"
	"minionkernel/internal/datastore"
	"minionkernel/internal/flow"
	"minionkernel/internal/health"
	"minionkernel/internal/kernelerr"
	"minionkernel/internal/messaging"
	"minionkernel/internal/registry"
	"minionkernel/internal/warroom"
)

type testKit struct {
	engine *Engine
	room   *warroom.WarRoom
	reg    *registry.Registry
	store  *datastore.Store
}

func newTestKit(t *testing.T) *testKit {
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
	engine := New(store, loader, room, hp)
	return &testKit{engine: engine, room: room, reg: reg, store: store}
}

func (k *testKit) mustCreateTask(t *testing.T, ctx context.Context, classRequired string) *datastore.Task {
	t.Helper()
	_, err := k.room.SetPlan(ctx, "lead1", "proj", "do the thing")
	require.NoError(t, err)
	task, err := k.engine.CreateTask(ctx, CreateTaskInput{
		Title: "fix it", Project: "proj", CreatedBy: "lead1", ClassRequired: classRequired,
	})
	require.NoError(t, err)
	return task
}

func TestCreateTaskRequiresActivePlan(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	_, err := k.engine.CreateTask(ctx, CreateTaskInput{Title: "x", Project: "proj", CreatedBy: "lead1"})
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.NoActivePlan))
}

func TestPullTaskIsRaceSafe(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	_, err := k.reg.Register(ctx, "coder1", "coder", "m", "genai")
	require.NoError(t, err)
	_, err = k.reg.Register(ctx, "coder2", "coder", "m", "genai")
	require.NoError(t, err)
	task := k.mustCreateTask(t, ctx, "")

	const n = 8
	errs := make([]error, n)
	agents := []string{"coder1", "coder2"}
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs[i] = k.engine.PullTask(ctx, agents[i%2], task.ID)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	successes := 0
	for _, e := range errs {
		if e == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes)

	got, err := k.engine.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "in_progress", got.Status)
}

func TestPullTaskRejectsClassMismatch(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	_, err := k.reg.Register(ctx, "builder1", "builder", "m", "genai")
	require.NoError(t, err)
	task := k.mustCreateTask(t, ctx, "coder")

	err = k.engine.PullTask(ctx, "builder1", task.ID)
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.WorkerClassMismatch))
}

func TestCompletePhaseRequiresSubmitResultBeforeFixed(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	_, err := k.reg.Register(ctx, "coder1", "coder", "m", "genai")
	require.NoError(t, err)
	task := k.mustCreateTask(t, ctx, "")
	require.NoError(t, k.engine.PullTask(ctx, "coder1", task.ID))

	_, err = k.engine.CompletePhase(ctx, "coder1", task.ID, false)
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.MissingResult))

	require.NoError(t, k.engine.SubmitResult(ctx, task.ID, "/tmp/result.md"))
	res, err := k.engine.CompletePhase(ctx, "coder1", task.ID, false)
	require.NoError(t, err)
	require.Equal(t, "fixed", res.NewStatus)
}

func TestCloseTaskRequiresResultFile(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	task := k.mustCreateTask(t, ctx, "")

	err := k.engine.CloseTask(ctx, "lead1", task.ID)
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.MissingResult))

	require.NoError(t, k.engine.SubmitResult(ctx, task.ID, "/tmp/r.md"))
	require.NoError(t, k.engine.CloseTask(ctx, "lead1", task.ID))

	got, err := k.engine.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "closed", got.Status)
}

func TestTaskLineageTracksVisitedStages(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	_, err := k.reg.Register(ctx, "coder1", "coder", "m", "genai")
	require.NoError(t, err)
	task := k.mustCreateTask(t, ctx, "")
	require.NoError(t, k.engine.PullTask(ctx, "coder1", task.ID))

	lineage, err := k.engine.TaskLineage(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, lineage.Visited["open"])
	require.True(t, lineage.Visited["assigned"])
	require.True(t, lineage.Visited["in_progress"])
	require.False(t, lineage.Visited["closed"])

	history, err := k.store.History(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "open", history[0].FromStatus)
	require.Equal(t, "assigned", history[0].ToStatus)
	require.Equal(t, "assigned", history[1].FromStatus)
	require.Equal(t, "in_progress", history[1].ToStatus)
}
