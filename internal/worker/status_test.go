// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/status"
)

var errUnavailable = errors.New("status table unavailable")

// brokenStatus fails every call.
type brokenStatus struct{}

func (brokenStatus) SetStatus(context.Context, status.Transition) error { return errUnavailable }

func (brokenStatus) PutMetadata(context.Context, string, job.MediaMetadata, time.Time) error {
	return errUnavailable
}

func (brokenStatus) Get(context.Context, string) (job.Record, error) {
	return job.Record{}, errUnavailable
}

func (brokenStatus) Ping(context.Context) error { return errUnavailable }

func (brokenStatus) Close() error { return nil }
