package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKeyDependsOnSettings(t *testing.T) {
	a, err := Key(strings.NewReader("video bytes"), "phash/sps=2")
	require.NoError(t, err)
	b, err := Key(strings.NewReader("video bytes"), "phash/sps=2")
	require.NoError(t, err)
	c, err := Key(strings.NewReader("video bytes"), "ahash/sps=2")
	require.NoError(t, err)
	d, err := Key(strings.NewReader("other bytes"), "phash/sps=2")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestFileKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o644))

	fk, err := FileKey(path, "s")
	require.NoError(t, err)
	k, err := Key(strings.NewReader("video bytes"), "s")
	require.NoError(t, err)
	assert.Equal(t, k, fk)

	_, err = FileKey(filepath.Join(t.TempDir(), "missing"), "s")
	assert.Error(t, err)
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get(42)
	require.NoError(t, err)
	assert.False(t, ok)

	audio := "track-1"
	require.NoError(t, s.Put(42, Entry{Fingerprint: "00000000000000ff", AudioID: &audio, AudioTried: true, DurationMs: 1200}))

	e, ok, err := s.Get(42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "00000000000000ff", e.Fingerprint)
	require.NotNil(t, e.AudioID)
	assert.Equal(t, "track-1", *e.AudioID)
	assert.True(t, e.AudioTried)
	assert.False(t, e.StoredAt.IsZero())

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(42))
	_, ok, err = s.Get(42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyFingerprintIsCached(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(7, Entry{}))
	e, ok, err := s.Get(7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", e.Fingerprint)
}
