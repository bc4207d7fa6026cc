// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"os"

	"github.com/ManuGH/vodladder/internal/intake"
	"github.com/ManuGH/vodladder/internal/log"
)

// RunJobFile reads a job file written by local dispatch, runs its job and
// removes the file whatever the outcome.
func (w *Worker) RunJobFile(ctx context.Context, path string) error {
	logger := log.WithComponentFromContext(ctx, "worker")
	defer func() {
		if err := intake.RemoveJobFile(path); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "worker.job_file_remove_failed").Str(log.FieldPath, path).Msg("job file not removed")
		}
	}()

	env, parsed, err := intake.ReadJobFile(path)
	if err != nil {
		return err
	}
	if parsed.Extra > 0 {
		logger.Warn().
			Str(log.FieldEvent, "worker.extra_records").
			Str(log.FieldMessageID, env.MessageID).
			Int("ignored", parsed.Extra).
			Msg("notification carries more than one record; only the first is processed")
	}
	return w.Run(ctx, parsed.Descriptor)
}

// RunFromEnv runs the job described by the injected worker environment:
// either a job file or the individual job parameters.
func (w *Worker) RunFromEnv(ctx context.Context) error {
	if p, ok := os.LookupEnv(intake.EnvJobFile); ok && p != "" {
		return w.RunJobFile(ctx, p)
	}
	d, err := intake.FromLookup(os.LookupEnv)
	if err != nil {
		return err
	}
	return w.Run(ctx, d)
}

