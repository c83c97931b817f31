package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/catalog"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// runCLI executes the root command against a fresh database in dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommandWith(newCommandContext(&out))
	base := []string{
		"-q",
		"--config", filepath.Join(dir, "missing.toml"),
		"--db", filepath.Join(dir, "catalog.sqlite3"),
		"--temp", dir,
		"--log-level", "error",
	}
	cmd.SetArgs(append(base, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", visualdna.ErrDecodeFailure), 2},
		{visualdna.ErrEmptyTarget, 3},
		{fmt.Errorf("bad: %w", models.ErrInvalidWeights), 4},
		{visualdna.ErrNotFound, 5},
		{assert.AnError, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Rank", "Filename"},
		[][]string{{"1", "a.mp4"}, {"2"}},
		[]columnAlignment{alignRight, alignLeft},
	)
	assert.Contains(t, out, "Rank")
	assert.Contains(t, out, "a.mp4")
	assert.Equal(t, 6, strings.Count(out, "\n")+1, out)
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "0:59", formatDuration(59_999))
	assert.Equal(t, "2:05", formatDuration(125_000))
}

func TestFormatScoreNoColor(t *testing.T) {
	assert.Equal(t, "87.50", formatScore(87.5))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "visualdna dev\n", out)
}

func TestCatalogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte(
		"filename,fingerprint_visual,fingerprint_audio_id\n"+
			"a.mp4,00000000000000ff00000000000000f0,track-1\n"+
			"b.mp4,ffffffffffffffff,nan\n"+
			"broken.mp4,zz,\n",
	), 0o644))

	out, err := runCLI(t, dir, "catalog", "import", in)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 record(s), rejected 1")
	assert.Contains(t, out, "broken.mp4")

	out, err = runCLI(t, dir, "catalog", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "a.mp4")
	assert.Contains(t, out, "b.mp4")
	assert.Contains(t, out, "track-1")

	out, err = runCLI(t, dir, "catalog", "show", "a.mp4")
	require.NoError(t, err)
	assert.Contains(t, out, "track-1")

	exported := filepath.Join(dir, "out.xlsx")
	_, err = runCLI(t, dir, "catalog", "export", exported)
	require.NoError(t, err)

	res, err := catalog.ReadFile(exported, "")
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "a.mp4", res.Records[0].Filename)
	assert.Equal(t, 2, res.Records[0].Fingerprint.Len())
	require.NotNil(t, res.Records[0].AudioID)
	assert.Nil(t, res.Records[1].AudioID)

	out, err = runCLI(t, dir, "catalog", "delete", "b.mp4")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted b.mp4")

	_, err = runCLI(t, dir, "catalog", "show", "b.mp4")
	assert.ErrorIs(t, err, visualdna.ErrNotFound)
	assert.Equal(t, 5, exitCode(err))
}

func TestCatalogListEmpty(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "catalog", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "The catalog is empty")
}

func TestCatalogImportNeedsSource(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "catalog", "import")
	assert.Error(t, err)

	_, err = runCLI(t, t.TempDir(), "catalog", "export", "out.json")
	assert.Error(t, err)
}

func TestSearchMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "search", filepath.Join(dir, "nope.mp4"))
	assert.ErrorIs(t, err, visualdna.ErrDecodeFailure)
}

func TestIndexNameNeedsSingleVideo(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "index", "--name", "x.mp4", "a.mp4", "b.mp4")
	assert.Error(t, err)
}
