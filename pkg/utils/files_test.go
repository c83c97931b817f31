package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceRelease(t *testing.T) {
	parent := t.TempDir()
	ws, err := NewWorkspace(filepath.Join(parent, "nested"), "search-")
	require.NoError(t, err)

	dir := ws.Dir
	require.NoError(t, os.WriteFile(ws.Path("frame.raw"), []byte("x"), 0o644))
	require.DirExists(t, dir)

	require.NoError(t, ws.Release())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, ws.Release(), "second release is a no-op")
	var nilWS *Workspace
	assert.NoError(t, nilWS.Release())
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "out.png")
	require.NoError(t, EnsureParentDir(target))
	assert.DirExists(t, filepath.Join(root, "a", "b"))
	assert.NoError(t, EnsureParentDir("plain.png"))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	require.NoError(t, MoveFile(src, filepath.Join(dir, "dst")))
	assert.FileExists(t, filepath.Join(dir, "dst"))
	assert.Error(t, MoveFile(src, filepath.Join(dir, "again")))
}
