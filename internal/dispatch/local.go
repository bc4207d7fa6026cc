// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/vodladder/internal/intake"
	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/procgroup"
)

// LocalOptions configures child-process dispatch.
type LocalOptions struct {
	// Command is the worker argv. The job is appended as environment, never
	// as arguments.
	Command []string
	// JobFileDir, when set, switches to job-file intake: the received
	// notification is written to <dir>/<jobId>.json and only its path is
	// passed to the worker.
	JobFileDir string
	// Env is added to the inherited environment.
	Env     []string
	Timeout time.Duration
	Grace   time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
}

// Local runs the worker as a child process in its own process group and
// waits for it. A non-zero exit leaves the notification for redelivery;
// ExitJobFailed is reported as ErrJobFailed.
type Local struct {
	opts LocalOptions
}

func NewLocal(opts LocalOptions) (*Local, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("dispatch: local command required")
	}
	if opts.Grace <= 0 {
		opts.Grace = procgroup.DefaultGrace
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Local{opts: opts}, nil
}

func (l *Local) Name() string { return StrategyLocal }

func (l *Local) Dispatch(ctx context.Context, req Request) (string, error) {
	handle := "local-" + uuid.NewString()
	logger := log.WithComponentFromContext(ctx, "dispatch")

	env := append(os.Environ(), l.opts.Env...)
	if l.opts.JobFileDir != "" {
		path, err := intake.WriteJobFile(l.opts.JobFileDir, req.Job.JobID, intake.FileEnvelope{
			MessageID:     req.MessageID,
			ReceiptHandle: req.ReceiptHandle,
			Body:          string(req.Body),
		})
		if err != nil {
			return "", wrap(req.Job, err)
		}
		// The worker removes the file itself; this covers a worker that
		// never got that far.
		defer func() {
			if err := intake.RemoveJobFile(path); err != nil {
				logger.Warn().Err(err).Str(log.FieldEvent, "dispatch.job_file_remove_failed").Str(log.FieldPath, path).Msg("job file not removed")
			}
		}()
		env = append(env, intake.EnvJobFile+"="+path)
	} else {
		env = append(env, jobEnv(req.Job)...)
	}

	runCtx := ctx
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	// #nosec G204 -- argv comes from operator configuration.
	cmd := exec.CommandContext(runCtx, l.opts.Command[0], l.opts.Command[1:]...)
	cmd.Env = env
	cmd.Stdout = l.opts.Stdout
	cmd.Stderr = l.opts.Stderr
	procgroup.Bind(cmd, l.opts.Grace)

	logger.Info().
		Str(log.FieldEvent, "dispatch.local_start").
		Str(log.FieldHandle, handle).
		Strs("argv", l.opts.Command).
		Msg("starting local worker")

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case runCtx.Err() != nil:
			err = errors.Join(runCtx.Err(), err)
		case errors.As(err, &exitErr) && exitErr.ExitCode() == ExitJobFailed:
			err = fmt.Errorf("%w: %w", ErrJobFailed, err)
		}
		return handle, wrap(req.Job, fmt.Errorf("local worker: %w", err))
	}

	logger.Info().
		Str(log.FieldEvent, "dispatch.local_exit").
		Str(log.FieldHandle, handle).
		Int64(log.FieldDurationMS, time.Since(start).Milliseconds()).
		Msg("local worker finished")
	return handle, nil
}
