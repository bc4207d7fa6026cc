// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package objectstore

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGetListDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"processed/clip/master.m3u8", "processed/clip/720p/segment_000.ts", "other/x.bin"} {
		require.NoError(t, store.Put(ctx, "media", key, strings.NewReader("data:"+key), PutOptions{Size: -1}))
	}

	rc, err := store.Get(ctx, "media", "processed/clip/master.m3u8")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "data:processed/clip/master.m3u8", string(body))

	keys, err := store.List(ctx, "media", "processed/clip/")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"processed/clip/720p/segment_000.ts", "processed/clip/master.m3u8"}, keys)

	require.NoError(t, store.Delete(ctx, "media", "processed/clip/master.m3u8"))
	require.NoError(t, store.Delete(ctx, "media", "processed/clip/master.m3u8"))
	_, err = store.Get(ctx, "media", "processed/clip/master.m3u8")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalOverwrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "b", "k.txt", strings.NewReader("first"), PutOptions{}))
	require.NoError(t, store.Put(ctx, "b", "k.txt", strings.NewReader("second"), PutOptions{}))

	rc, err := store.Get(ctx, "b", "k.txt")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(body))
}

func TestLocalRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, store.Put(ctx, "..", "k", strings.NewReader(""), PutOptions{}), ErrInvalidKey)
	assert.ErrorIs(t, store.Put(ctx, "a/b", "k", strings.NewReader(""), PutOptions{}), ErrInvalidKey)
	assert.ErrorIs(t, store.Put(ctx, "b", "", strings.NewReader(""), PutOptions{}), ErrInvalidKey)

	// Traversal in a key is clamped under the bucket rather than escaping it.
	require.NoError(t, store.Put(ctx, "b", "../../etc/x", strings.NewReader("v"), PutOptions{}))
	rc, err := store.Get(ctx, "b", "etc/x")
	require.NoError(t, err)
	_ = rc.Close()
}

func TestLocalListMissingBucket(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	keys, err := store.List(context.Background(), "nothing", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
