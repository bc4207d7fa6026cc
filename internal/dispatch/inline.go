// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Inline runs the worker inside the poller process and returns once the job
// reached a terminal status. A failed job is reported as ErrJobFailed.
type Inline struct {
	runner JobRunner
}

func NewInline(runner JobRunner) *Inline { return &Inline{runner: runner} }

func (i *Inline) Name() string { return StrategyInline }

func (i *Inline) Dispatch(ctx context.Context, req Request) (string, error) {
	handle := "inline-" + uuid.NewString()
	if err := ctx.Err(); err != nil {
		return "", wrap(req.Job, err)
	}
	err := i.runner.Run(ctx, req.Job)
	// A cancelled run never reached finalize.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return handle, wrap(req.Job, ctxErr)
	}
	if err != nil {
		return handle, wrap(req.Job, fmt.Errorf("%w: %w", ErrJobFailed, err))
	}
	return handle, nil
}
