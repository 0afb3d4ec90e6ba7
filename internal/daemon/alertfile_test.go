package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndClearAlert(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteAlert(dir, "coder1", "3 consecutive provider failures"))

	path := filepath.Join(dir, "coder1.alert")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "3 consecutive provider failures")

	require.NoError(t, ClearAlert(dir, "coder1"))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestClearAlertMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ClearAlert(dir, "nobody"))
}
