package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigNumerics(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 100_000, cfg.RollingHistory.MaxTokens)
	require.Equal(t, 120_000, cfg.RollingHistory.MaxPromptChars)
	require.Equal(t, 200_000, cfg.DefaultContextWindow)
	require.Equal(t, 5*time.Second, cfg.Polling.Interval)
	require.Equal(t, 15*time.Minute, cfg.Staleness.Lead)
	require.Equal(t, 30*time.Minute, cfg.Staleness.Oracle)
	require.Equal(t, 5*time.Minute, cfg.Staleness.Default)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project: raidcrew\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "raidcrew", cfg.Project)
	require.Equal(t, 100_000, cfg.RollingHistory.MaxTokens)
}

func TestStalenessForUnknownClassUsesDefault(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, cfg.Staleness.Default, cfg.StalenessFor("coder"))
	require.Equal(t, cfg.Staleness.Lead, cfg.StalenessFor("lead"))
}
