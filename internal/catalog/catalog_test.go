package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name string, channels, byteDepth int, frames int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buildWAV(channels, byteDepth, 48000, frames, ""), 0o644))
}

func TestMount_FlatDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "alpha.wav", 1, 2, 2)
	writeFixture(t, dir, "beta.wav", 1, 4, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	cat, err := Mount(dir, nil, log.Default())
	require.NoError(t, err)

	entries := cat.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.True(t, e.Valid, "entry %s should be valid", e.Name)
		require.False(t, e.IsDirectory)
	}
}

func TestMount_DirectoryNavigation(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "kicks")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFixture(t, dir, "root.wav", 1, 2, 1)
	writeFixture(t, sub, "a.wav", 1, 2, 1)
	writeFixture(t, sub, "b.wav", 1, 2, 1)

	cat, err := Mount(dir, nil, log.Default())
	require.NoError(t, err)

	entries := cat.Entries()
	var dirIdx = -1
	for i, e := range entries {
		if e.IsDirectory && e.Name == "kicks" {
			dirIdx = i
		}
	}
	require.NotEqual(t, -1, dirIdx)

	first, ok := cat.Enter(dirIdx)
	require.True(t, ok)
	e, ok := cat.Entry(first)
	require.True(t, ok)
	require.Equal(t, dirIdx, e.Dir)

	lo, hi, ok := cat.Bounds(dirIdx)
	require.True(t, ok)
	require.Equal(t, first, lo)
	require.NotEqual(t, lo, hi)
}

func TestMount_InvalidWavMarkedInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("not a riff file at all"), 0o644))

	cat, err := Mount(dir, nil, log.Default())
	require.NoError(t, err)

	entries := cat.Entries()
	require.Len(t, entries, 1)
	require.False(t, entries[0].Valid)
}

func TestMount_IgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, ".hidden.wav", 1, 2, 1)
	writeFixture(t, dir, "visible.wav", 1, 2, 1)

	cat, err := Mount(dir, nil, log.Default())
	require.NoError(t, err)
	require.Len(t, cat.Entries(), 1)
}

func TestRescan_PicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "one.wav", 1, 2, 1)

	cat, err := Mount(dir, nil, log.Default())
	require.NoError(t, err)
	require.Len(t, cat.Entries(), 1)

	writeFixture(t, dir, "two.wav", 1, 2, 1)
	require.NoError(t, cat.Rescan())
	require.Len(t, cat.Entries(), 2)
}
