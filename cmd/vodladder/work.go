// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ManuGH/vodladder/internal/app/bootstrap"
	"github.com/ManuGH/vodladder/internal/daemon"
	"github.com/ManuGH/vodladder/internal/dispatch"
	"github.com/ManuGH/vodladder/internal/health"
	"github.com/ManuGH/vodladder/internal/intake"
	"github.com/ManuGH/vodladder/internal/job"
	xglog "github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/version"
)

type workOptions struct {
	jobFile string
	bucket  string
	key     string
}

func (w workOptions) manual() bool { return w.bucket != "" || w.key != "" }

func newWorkCmd(o *rootOptions) *cobra.Command {
	w := workOptions{}
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run one transcode job to a terminal status",
		Long: `Run one transcode job. The job comes from --job-file, from --bucket/--key,
or from the environment a dispatcher injects (VODLADDER_JOB_FILE, or
VODLADDER_JOB_BUCKET and VODLADDER_JOB_KEY).

The exit status is 0 when the job finished done and 2 when it was recorded
as failed. It is 1 when the job could not be read and 130 when the run was
interrupted. Any non-zero status keeps the notification queued.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if w.jobFile != "" && w.manual() {
				return errors.New("--job-file cannot be combined with --bucket/--key")
			}
			if w.manual() && (w.bucket == "" || w.key == "") {
				return errors.New("--bucket and --key must be given together")
			}
			return runWork(cmd.Context(), o.configPath, w)
		},
	}
	cmd.Flags().StringVar(&w.jobFile, "job-file", "", "job file written by local dispatch")
	cmd.Flags().StringVar(&w.bucket, "bucket", "", "source bucket for a manual run")
	cmd.Flags().StringVar(&w.key, "key", "", "decoded source key for a manual run")
	return cmd
}

func runWork(ctx context.Context, configPath string, w workOptions) error {
	cfg, err := bootstrap.LoadConfig(configPath, version.Version)
	if err != nil {
		return err
	}
	logger := xglog.WithComponent("work")

	ctx, stop := daemon.SignalContext(ctx)
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg, health.RoleWorker); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	// Without a poller in front, nobody else records "processing".
	c, err := bootstrap.Wire(ctx, cfg, bootstrap.Options{MarkProcessing: w.manual()})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = c.Close(closeCtx)
	}()

	switch {
	case w.jobFile != "":
		err = c.Worker.RunJobFile(ctx, w.jobFile)
	case w.manual():
		var d job.Descriptor
		d, err = intake.FromLookup(func(k string) (string, bool) {
			switch k {
			case intake.EnvBucket:
				return w.bucket, true
			case intake.EnvKey:
				return w.key, true
			}
			return "", false
		})
		if err == nil {
			err = c.Worker.Run(ctx, d)
		}
	default:
		err = c.Worker.RunFromEnv(ctx)
	}
	return workResult(ctx, logger, err)
}

// exitInterrupted is returned when a signal stopped the job mid-run.
const exitInterrupted = 130

// workResult maps a worker outcome to the process result.
func workResult(ctx context.Context, logger zerolog.Logger, err error) error {
	if err == nil {
		return nil
	}
	var ie *job.IntakeError
	if errors.As(err, &ie) {
		return &exitError{code: 1, err: err}
	}
	if ctx.Err() != nil {
		return &exitError{code: exitInterrupted, err: fmt.Errorf("interrupted: %w", err)}
	}
	logger.Info().
		Str(xglog.FieldEvent, "work.terminal_failure").
		Str(xglog.FieldStage, job.Stage(err)).
		Msg("job reached failed status")
	return &exitError{code: dispatch.ExitJobFailed, err: err}
}
