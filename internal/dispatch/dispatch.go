// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dispatch hands a job to a worker. Strategies differ in where the
// worker runs: a local child process, a remote ECS task, or this process.
package dispatch

import (
	"context"
	"errors"
	"sort"

	"github.com/ManuGH/vodladder/internal/intake"
	"github.com/ManuGH/vodladder/internal/job"
)

// Strategy names accepted in configuration.
const (
	StrategyLocal  = "local"
	StrategyECS    = "ecs"
	StrategyInline = "inline"
)

// ErrJobFailed reports a worker that ran to the end and recorded the job as
// failed. The notification stays queued for the queue's redrive policy.
var ErrJobFailed = errors.New("job failed")

// ExitJobFailed is the worker process exit code for a job recorded as failed.
const ExitJobFailed = 2

// Request carries a job and the delivery it came from. Only the local
// strategy with a job file directory uses the delivery fields.
type Request struct {
	Job           job.Descriptor
	MessageID     string
	ReceiptHandle string
	Body          []byte
}

// Dispatcher launches a worker for one job. A nil error means the
// notification may be deleted: synchronous strategies return nil only when
// the job finished done, ECS when the task was launched. The returned handle
// is for logging only.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (handle string, err error)
	Name() string
}

// JobRunner runs the worker pipeline for one job in-process.
type JobRunner interface {
	Run(ctx context.Context, d job.Descriptor) error
}

func wrap(d job.Descriptor, err error) error {
	if err == nil {
		return nil
	}
	return &job.DispatchError{JobID: d.JobID, Err: err}
}

// jobEnv returns the worker environment for d in a stable order.
func jobEnv(d job.Descriptor) []string {
	m := intake.Env(d)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}
