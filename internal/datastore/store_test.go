package datastore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kernel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterThenGetAgentRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)
	require.Equal(t, "coder1", a.Name)
	require.Equal(t, "coder", a.Class)
	require.False(t, a.Retired)

	got, err := s.GetAgent(ctx, "coder1")
	require.NoError(t, err)
	require.Equal(t, a.Name, got.Name)
}

func TestGetAgentMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAgent(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound())
}

func TestRetireHidesFromListAgents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)

	require.NoError(t, s.Retire(ctx, "coder1"))

	all, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	// Re-registering un-retires, per Register's ON CONFLICT clause.
	_, err = s.Register(ctx, "coder1", "coder", "model-a", "genai")
	require.NoError(t, err)
	all, err = s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestWithTxRetriesOnBusy(t *testing.T) {
	s := openTestStore(t)
	calls := 0
	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		calls++
		if calls < 2 {
			return &mockBusyErr{}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

type mockBusyErr struct{}

func (e *mockBusyErr) Error() string { return "database is locked" }

func TestFlagSetAndClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	set, err := s.FlagSet(ctx, "stand_down")
	require.NoError(t, err)
	require.False(t, set)

	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return SetFlagTx(tx, "stand_down", "true", "test")
	}))

	set, err = s.FlagSet(ctx, "stand_down")
	require.NoError(t, err)
	require.True(t, set)

	require.NoError(t, s.ClearFlag(ctx, "stand_down"))
	set, err = s.FlagSet(ctx, "stand_down")
	require.NoError(t, err)
	require.False(t, set)
}

func TestCheckInboxMarksReadAndOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "coder1", "coder", "m", "genai")
	require.NoError(t, err)

	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := InsertMessage(tx, "lead", "coder1", "/tmp/a.md", false, ""); err != nil {
			return err
		}
		_, err := InsertMessage(tx, "lead", "coder1", "/tmp/b.md", false, "")
		return err
	}))

	msgs, err := s.CheckInbox(ctx, "coder1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "/tmp/a.md", msgs[0].ContentPath)
	require.Equal(t, "/tmp/b.md", msgs[1].ContentPath)

	again, err := s.CheckInbox(ctx, "coder1")
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestPurgeInboxLeavesUnreadAlone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "coder1", "coder", "m", "genai")
	require.NoError(t, err)

	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := InsertMessage(tx, "lead", "coder1", "/tmp/a.md", false, "")
		return err
	}))

	// Unread: purge removes nothing.
	n, err := s.PurgeInbox(ctx, "coder1", -time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	_, err = s.CheckInbox(ctx, "coder1")
	require.NoError(t, err)

	// Now read: a negative window means "older than the future", matches everything.
	n, err = s.PurgeInbox(ctx, "coder1", -time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
