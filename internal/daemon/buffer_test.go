package daemon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingBufferEvictsOldestUnderBudget(t *testing.T) {
	b := NewRollingBuffer(10) // ~40 chars
	b.Append(strings.Repeat("a", 20))
	b.Append(strings.Repeat("b", 20))
	b.Append(strings.Repeat("c", 20))

	require.LessOrEqual(t, b.UsedTokens(), 10+approxTokens(strings.Repeat("c", 20)))
	replay := b.Replay(1000)
	assert.NotContains(t, replay, "aaaa")
	assert.Contains(t, replay, "ccc")
}

func TestRollingBufferReplayRespectsCharCap(t *testing.T) {
	b := NewRollingBuffer(100000)
	b.Append(strings.Repeat("x", 50))
	b.Append(strings.Repeat("y", 50))

	replay := b.Replay(60)
	assert.LessOrEqual(t, len(replay), 60)
	assert.True(t, strings.HasSuffix(replay, strings.Repeat("y", 50)[len(strings.Repeat("y", 50))-10:]))
}

func TestRollingBufferClear(t *testing.T) {
	b := NewRollingBuffer(1000)
	b.Append("hello")
	b.Clear()
	assert.Equal(t, 0, b.UsedTokens())
	assert.Equal(t, "", b.Replay(100))
}
