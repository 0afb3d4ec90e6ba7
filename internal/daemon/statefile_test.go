package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteAndReadState(t *testing.T) {
	dir := t.TempDir()
	s := State{Agent: "coder1", Status: "idle", UpdatedAt: time.Now(), ConsecutiveFailures: 2, ResumeReady: true}
	require.NoError(t, WriteState(dir, s))

	got, err := ReadState(dir, "coder1")
	require.NoError(t, err)
	require.Equal(t, s.Agent, got.Agent)
	require.Equal(t, s.Status, got.Status)
	require.Equal(t, s.ConsecutiveFailures, got.ConsecutiveFailures)
	require.True(t, got.ResumeReady)
}

func TestReadStateMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadState(dir, "nobody")
	require.Error(t, err)
}
