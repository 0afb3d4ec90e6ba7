package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadContractDocsReadsBootRulesAndMarkers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, bootRulesFile), []byte("check inbox before acting"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, compactionMarkersFile), []byte("[CONTEXT SUMMARIZED]\n[AUTO-COMPACT]\n"), 0o644))

	c, err := LoadContractDocs(dir)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, "check inbox before acting", c.BootRules())
	require.True(t, c.DetectCompaction("...[AUTO-COMPACT]..."))
	require.False(t, c.DetectCompaction("nothing unusual here"))
}

func TestLoadContractDocsToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadContractDocs(dir)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, "", c.BootRules())
	require.False(t, c.DetectCompaction("anything"))
}
