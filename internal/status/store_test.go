// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/persistence/sqlite"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(30 * time.Second)
	t2 = t1.Add(90 * time.Second)
)

var sampleMetadata = job.MediaMetadata{
	Duration:     12.5,
	Size:         4 << 20,
	BitRate:      2_600_000,
	Codec:        "h264",
	Width:        1920,
	Height:       1080,
	FrameRate:    29.97,
	VideoBitRate: 2_400_000,
	AudioCodec:   "aac",
}

// runStoreContract exercises the upsert semantics every backend shares.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("lifecycle", func(t *testing.T) {
		require.NoError(t, s.SetStatus(ctx, Transition{
			JobID: "clip", Status: job.StatusProcessing, Bucket: "uploads", Key: "raw/clip.mp4", At: t0,
		}))
		require.NoError(t, s.PutMetadata(ctx, "clip", sampleMetadata, t1))
		require.NoError(t, s.SetStatus(ctx, Transition{JobID: "clip", Status: job.StatusDone, At: t2}))

		got, err := s.Get(ctx, "clip")
		require.NoError(t, err)

		want := job.Record{
			JobID:     "clip",
			Status:    job.StatusDone,
			Bucket:    "uploads",
			Key:       "raw/clip.mp4",
			CreatedAt: t0,
			UpdatedAt: t2,
			Metadata:  &sampleMetadata,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("redelivery overwrites", func(t *testing.T) {
		require.NoError(t, s.SetStatus(ctx, Transition{JobID: "again", Status: job.StatusFailed, At: t0}))
		require.NoError(t, s.SetStatus(ctx, Transition{JobID: "again", Status: job.StatusProcessing, At: t1}))

		got, err := s.Get(ctx, "again")
		require.NoError(t, err)
		assert.Equal(t, job.StatusProcessing, got.Status)
		assert.True(t, got.CreatedAt.Equal(t0))
		assert.True(t, got.UpdatedAt.Equal(t1))
		assert.Nil(t, got.Metadata)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		assert.Error(t, s.SetStatus(ctx, Transition{JobID: "../x", Status: job.StatusDone, At: t0}))
		assert.Error(t, s.SetStatus(ctx, Transition{JobID: "ok", Status: "bogus", At: t0}))
	})

	require.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "status.sqlite"), sqlite.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	runStoreContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "status.sqlite")

	s, err := OpenSQLite(ctx, path, sqlite.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, Transition{JobID: "keep", Status: job.StatusDone, At: t0}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, sqlite.DefaultConfig())
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, job.StatusDone, got.Status)
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	runStoreContract(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(client, "vodladder:")
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)

	assert.Equal(t, "done", mr.HGet("vodladder:job:clip", "status"))
	assert.Equal(t, "uploads", mr.HGet("vodladder:job:clip", "bucket"))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("VODLADDER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VODLADDER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM vodladder_jobs WHERE job_id IN ('clip', 'again')`)
		_ = s.Close()
	})
	_, err = s.pool.Exec(ctx, `DELETE FROM vodladder_jobs WHERE job_id IN ('clip', 'again')`)
	require.NoError(t, err)

	runStoreContract(t, s)
}
