package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestResolveBaseByName(t *testing.T) {
	loader := NewLoader(t.TempDir())
	require.NoError(t, loader.LoadAll())

	f, err := loader.Resolve("_base")
	require.NoError(t, err)
	require.Equal(t, Base.Initial, f.Initial)
	if diff := cmp.Diff(Base.Stages, f.Stages); diff != "" {
		t.Fatalf("unresolved flow diverged from Base (-want +got):\n%s", diff)
	}
}

func TestResolveMergesInheritanceChain(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "bugfix.yaml", `
name: bugfix
stages:
  in_progress:
    next: fixed
    fail: open
    requires: [submit_result]
    workers:
      default: [coder]
  fixed:
    next: verified
    workers:
      default: [oracle]
`)
	writeFlow(t, dir, "hotfix.yaml", `
name: hotfix
inherits: bugfix
initial: in_progress
stages:
  fixed:
    next: closed
    workers:
      default: [lead]
`)

	loader := NewLoader(dir)
	require.NoError(t, loader.LoadAll())

	f, err := loader.Resolve("hotfix")
	require.NoError(t, err)
	require.Equal(t, "in_progress", f.Initial)
	require.Equal(t, "closed", f.Stages["fixed"].Next)
	require.Equal(t, "fixed", f.Stages["in_progress"].Next)

	// Stages not touched by the chain still come from Base, byte for byte.
	if diff := cmp.Diff(Base.Stages["open"], f.Stages["open"]); diff != "" {
		t.Fatalf("inherited stage diverged from Base (-want +got):\n%s", diff)
	}
}

func TestResolveDetectsInheritanceCycle(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "a.yaml", "name: a\ninherits: b\n")
	writeFlow(t, dir, "b.yaml", "name: b\ninherits: a\n")

	loader := NewLoader(dir)
	require.NoError(t, loader.LoadAll())

	_, err := loader.Resolve("a")
	require.Error(t, err)
}

func TestValidateRejectsTerminalWithNext(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "bad.yaml", `
name: bad
stages:
  closed:
    next: open
    terminal: true
    workers:
      default: [lead]
`)
	loader := NewLoader(dir)
	require.NoError(t, loader.LoadAll())

	_, err := loader.Resolve("bad")
	require.Error(t, err)
}

func TestValidateRejectsUnknownRequires(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "bad.yaml", `
name: bad
stages:
  in_progress:
    next: fixed
    requires: [teleport]
    workers:
      default: [coder]
`)
	loader := NewLoader(dir)
	require.NoError(t, loader.LoadAll())

	_, err := loader.Resolve("bad")
	require.Error(t, err)
}

func TestNamesReflectsLoadedDocs(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "a.yaml", "name: a\nstages: {}\n")
	loader := NewLoader(dir)
	require.NoError(t, loader.LoadAll())
	require.Equal(t, []string{"a"}, loader.Names())
}

func TestLoadAllToleratesMissingDir(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, loader.LoadAll())
	require.Empty(t, loader.Names())
}

func writeFlow(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
