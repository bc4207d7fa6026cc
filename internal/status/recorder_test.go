// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*Memory
	err error
}

func (f failingStore) SetStatus(context.Context, Transition) error { return f.err }

func (f failingStore) PutMetadata(context.Context, string, job.MediaMetadata, time.Time) error {
	return f.err
}

var clip = job.Descriptor{JobID: "clip", Bucket: "uploads", Key: "raw/clip.mp4"}

func TestRecorder_WritesThroughWithClock(t *testing.T) {
	mem := NewMemory()
	r := NewRecorder(mem, WithClock(func() time.Time { return t0 }))

	require.NoError(t, r.SetStatus(context.Background(), clip, job.StatusProcessing))
	require.NoError(t, r.PutMetadata(context.Background(), "clip", sampleMetadata))

	rec, err := r.Get(context.Background(), "clip")
	require.NoError(t, err)
	assert.Equal(t, job.StatusProcessing, rec.Status)
	assert.Equal(t, "uploads", rec.Bucket)
	assert.Equal(t, t0, rec.CreatedAt)
	assert.Same(t, mem, r.Store())
}

func TestRecorder_WrapsFailures(t *testing.T) {
	boom := errors.New("throttled")
	r := NewRecorder(failingStore{Memory: NewMemory(), err: boom})

	err := r.SetStatus(context.Background(), clip, job.StatusDone)
	var swe *job.StatusWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "set_status", swe.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "status", job.Stage(err))

	err = r.PutMetadata(context.Background(), "clip", sampleMetadata)
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "put_metadata", swe.Op)
}

type deadlineStore struct{ *Memory }

func (d deadlineStore) SetStatus(ctx context.Context, _ Transition) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	return nil
}

func TestRecorder_WritesAfterCallerCancel(t *testing.T) {
	r := NewRecorder(deadlineStore{NewMemory()}, WithWriteTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, r.SetStatus(ctx, clip, job.StatusFailed))
}
