// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package status persists the lifecycle state and analysis metadata of each
// job. Writes are upserts keyed by job id; the last write wins.
package status

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
)

// ErrNotFound is returned by Get when no record exists for the id.
var ErrNotFound = errors.New("status: job not found")

// Transition is one status write. Bucket and Key are optional; empty values
// keep whatever the record already holds.
type Transition struct {
	JobID  string
	Status job.Status
	Bucket string
	Key    string
	At     time.Time
}

// Store is a status and metadata backend.
type Store interface {
	SetStatus(ctx context.Context, t Transition) error
	PutMetadata(ctx context.Context, jobID string, md job.MediaMetadata, at time.Time) error
	Get(ctx context.Context, jobID string) (job.Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// apply merges t into rec. CreatedAt is only set on the first write.
func apply(rec *job.Record, t Transition) {
	rec.JobID = t.JobID
	rec.Status = t.Status
	if t.Bucket != "" {
		rec.Bucket = t.Bucket
	}
	if t.Key != "" {
		rec.Key = t.Key
	}
	touch(rec, t.At)
}

func touch(rec *job.Record, at time.Time) {
	at = at.UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = at
	}
	rec.UpdatedAt = at
}

func validTransition(t Transition) error {
	if err := job.ValidateID(t.JobID); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return errors.New("status: unknown status " + string(t.Status))
	}
	return nil
}
