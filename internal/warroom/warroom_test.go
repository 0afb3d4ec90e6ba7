package warroom

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"minionkernel/internal/datastore"
)

func newTestRoom(t *testing.T) *WarRoom {
	t.Helper()
	store, err := datastore.Open(filepath.Join(t.TempDir(), "kernel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestActivePlanReturnsErrNotFoundWhenNoneSet(t *testing.T) {
	room := newTestRoom(t)
	_, err := room.ActivePlan(context.Background(), "proj")
	require.ErrorIs(t, err, datastore.ErrNotFound())

	has, err := room.HasActivePlan(context.Background(), "proj")
	require.NoError(t, err)
	require.False(t, has)
}

func TestSetPlanSupersedesPriorActivePlan(t *testing.T) {
	room := newTestRoom(t)
	ctx := context.Background()

	p1, err := room.SetPlan(ctx, "lead1", "proj", "plan one")
	require.NoError(t, err)
	p2, err := room.SetPlan(ctx, "lead1", "proj", "plan two")
	require.NoError(t, err)
	require.NotEqual(t, p1.ID, p2.ID)

	active, err := room.ActivePlan(ctx, "proj")
	require.NoError(t, err)
	require.Equal(t, p2.ID, active.ID)
	require.Equal(t, "plan two", active.Text)
}

func TestGetLogOrdersNewestFirst(t *testing.T) {
	room := newTestRoom(t)
	ctx := context.Background()

	require.NoError(t, room.Log(ctx, "lead1", "entry1.md", "normal"))
	require.NoError(t, room.Log(ctx, "lead1", "entry2.md", "high"))

	entries, err := room.GetLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "entry2.md", entries[0].EntryFile)
	require.Equal(t, "entry1.md", entries[1].EntryFile)
}
