package messaging

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"minionkernel/internal/config"
	"minionkernel/internal/datastore"
	"minionkernel/internal/kernelerr"
	"minionkernel/internal/registry"
	"minionkernel/internal/warroom"
)

type testKit struct {
	msg   *Messenger
	reg   *registry.Registry
	room  *warroom.WarRoom
	store *datastore.Store
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
	msg := New(store, reg, room, "proj", filepath.Join(dir, "inbox"))
	return &testKit{msg: msg, reg: reg, room: room, store: store}
}

func (k *testKit) register(t *testing.T, ctx context.Context, name, class string) {
	t.Helper()
	_, err := k.reg.Register(ctx, name, class, "m", "genai")
	require.NoError(t, err)
	require.NoError(t, k.reg.SetContext(ctx, name, "ready", false))
}

func TestSendRequiresActivePlan(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	k.register(t, ctx, "lead1", "lead")

	_, err := k.msg.Send(ctx, "lead1", "coder1", "hello", nil)
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.NoActivePlan))
}

func TestSendRequiresEmptyInbox(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	k.register(t, ctx, "lead1", "lead")
	k.register(t, ctx, "coder1", "coder")
	_, err := k.room.SetPlan(ctx, "lead1", "proj", "plan")
	require.NoError(t, err)

	_, err = k.msg.Send(ctx, "lead1", "coder1", "first", nil)
	require.NoError(t, err)

	// coder1 has an unread message now; sending from coder1 must fail.
	_, err = k.msg.Send(ctx, "coder1", "lead1", "reply", nil)
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.UnreadInbox))
}

func TestSendAutoCCsLead(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	k.register(t, ctx, "lead1", "lead")
	k.register(t, ctx, "coder1", "coder")
	k.register(t, ctx, "coder2", "coder")
	_, err := k.room.SetPlan(ctx, "lead1", "proj", "plan")
	require.NoError(t, err)

	_, err = k.msg.Send(ctx, "coder1", "coder2", "status update", nil)
	require.NoError(t, err)

	leadMsgs, err := k.msg.CheckInbox(ctx, "lead1")
	require.NoError(t, err)
	require.Len(t, leadMsgs, 1)
	require.True(t, leadMsgs[0].IsCC)
}

func TestSendToClassFansOutToEachMember(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	k.register(t, ctx, "lead1", "lead")
	k.register(t, ctx, "coder1", "coder")
	k.register(t, ctx, "coder2", "coder")
	_, err := k.room.SetPlan(ctx, "lead1", "proj", "plan")
	require.NoError(t, err)

	res, err := k.msg.Send(ctx, "lead1", "coder", "go", nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.RecipientCount)

	m1, err := k.msg.CheckInbox(ctx, "coder1")
	require.NoError(t, err)
	require.Len(t, m1, 1)
	m2, err := k.msg.CheckInbox(ctx, "coder2")
	require.NoError(t, err)
	require.Len(t, m2, 1)
}

func TestSendUnknownRecipientFails(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	k.register(t, ctx, "lead1", "lead")
	_, err := k.room.SetPlan(ctx, "lead1", "proj", "plan")
	require.NoError(t, err)

	_, err = k.msg.Send(ctx, "lead1", "nobody", "hi", nil)
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.UnknownRecipient))
}

func TestMoonCrashBlocksNonLeadSends(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	k.register(t, ctx, "lead1", "lead")
	k.register(t, ctx, "coder1", "coder")
	_, err := k.room.SetPlan(ctx, "lead1", "proj", "plan")
	require.NoError(t, err)

	_, err = k.msg.Send(ctx, "lead1", "coder1", "moon_crash: reactor breach", nil)
	require.NoError(t, err)
	_, err = k.msg.CheckInbox(ctx, "coder1")
	require.NoError(t, err)

	_, err = k.msg.Send(ctx, "coder1", "lead1", "status", nil)
	require.Error(t, err)
	require.True(t, kernelerr.Is(err, kernelerr.MoonCrash))

	require.NoError(t, k.msg.ClearMoonCrash(ctx))
	_, err = k.msg.Send(ctx, "coder1", "lead1", "status", nil)
	require.NoError(t, err)
}

func TestBroadcastIsReadOncePerAgent(t *testing.T) {
	k := newTestKit(t)
	ctx := context.Background()
	k.register(t, ctx, "lead1", "lead")
	k.register(t, ctx, "coder1", "coder")
	_, err := k.room.SetPlan(ctx, "lead1", "proj", "plan")
	require.NoError(t, err)

	_, err = k.msg.Send(ctx, "lead1", "all", "stand by", nil)
	require.NoError(t, err)

	first, err := k.msg.CheckInbox(ctx, "coder1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := k.msg.CheckInbox(ctx, "coder1")
	require.NoError(t, err)
	require.Empty(t, second)
}
