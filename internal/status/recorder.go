// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultWriteTimeout bounds a single best-effort write.
const DefaultWriteTimeout = 5 * time.Second

// Recorder performs best-effort writes: failures are logged, counted and
// returned as *job.StatusWriteError for callers that want them, but never
// alter pipeline control flow on their own.
type Recorder struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, timeout: DefaultWriteTimeout, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Store returns the wrapped backend.
func (r *Recorder) Store() Store { return r.store }

// writeContext detaches from caller cancellation so a terminal status still
// lands after the job context was cancelled.
func (r *Recorder) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
}

// SetStatus records st for d. Bucket and key are written alongside.
func (r *Recorder) SetStatus(ctx context.Context, d job.Descriptor, st job.Status) error {
	wctx, cancel := r.writeContext(ctx)
	defer cancel()

	err := r.store.SetStatus(wctx, Transition{
		JobID:  d.JobID,
		Status: st,
		Bucket: d.Bucket,
		Key:    d.Key,
		At:     r.now(),
	})
	return r.finish(ctx, "set_status", d.JobID, err, func(l *zerolog.Event) { l.Str("status", string(st)) })
}

// PutMetadata records the analysis result for jobID.
func (r *Recorder) PutMetadata(ctx context.Context, jobID string, md job.MediaMetadata) error {
	wctx, cancel := r.writeContext(ctx)
	defer cancel()

	err := r.store.PutMetadata(wctx, jobID, md, r.now())
	return r.finish(ctx, "put_metadata", jobID, err, nil)
}

// Get reads the record for jobID. Reads are not best-effort.
func (r *Recorder) Get(ctx context.Context, jobID string) (job.Record, error) {
	return r.store.Get(ctx, jobID)
}

func (r *Recorder) finish(ctx context.Context, op, jobID string, err error, extra func(*zerolog.Event)) error {
	logger := log.WithComponentFromContext(ctx, "status")
	if log.JobIDFromContext(ctx) == "" {
		logger = logger.With().Str(log.FieldJobID, jobID).Logger()
	}
	if err == nil {
		metrics.IncStatusWrite(op, "ok")
		ev := logger.Debug().Str(log.FieldEvent, "status.write").Str("op", op)
		if extra != nil {
			extra(ev)
		}
		ev.Msg("status write ok")
		return nil
	}
	metrics.IncStatusWrite(op, "error")
	ev := logger.Warn().Err(err).Str(log.FieldEvent, "status.write_failed").Str("op", op)
	if extra != nil {
		extra(ev)
	}
	ev.Msg("status write failed")
	return &job.StatusWriteError{JobID: jobID, Op: op, Err: err}
}
