package lims

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	dir := t.TempDir()

	mk := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	kept := mk("input.dat", "fetched from repo")
	committed := mk("out.txt", "committed output")
	mk("scratch1.tmp", "junk")
	mk("scratch2.log", "more junk")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subwork", "deep"), 0o755))

	keep := map[string]struct{}{
		kept:      {},
		committed: {},
	}
	require.NoError(t, sweep(dir, keep))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"input.dat", "out.txt"}, names,
		"only kept files survive; scratch files and subdirectories are collected")
}

func TestSweepEmptyKeepSet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("y"), 0o644))

	require.NoError(t, sweep(dir, map[string]struct{}{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
