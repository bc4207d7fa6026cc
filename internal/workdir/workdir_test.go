// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireClearsStaleContents(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "clip", "output", "720p")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "index.m3u8"), []byte("old"), 0o644))

	d, err := Acquire(root, "clip")
	require.NoError(t, err)

	entries, err := os.ReadDir(d.Path())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, filepath.Join(d.Path(), "input", "clip.mp4"), d.Join("input", "clip.mp4"))
}

func TestReleaseRemovesTree(t *testing.T) {
	d, err := Acquire(t.TempDir(), "clip")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(d.Join("source.mp4"), []byte("x"), 0o644))

	require.NoError(t, d.Release())
	_, err = os.Stat(d.Path())
	assert.True(t, os.IsNotExist(err))

	// Releasing twice is harmless.
	assert.NoError(t, d.Release())
}

func TestAcquireRejectsTraversal(t *testing.T) {
	_, err := Acquire(t.TempDir(), "..")
	assert.Error(t, err)
}
