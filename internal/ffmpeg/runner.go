// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg runs the external media tools (ffprobe, ffmpeg) as bounded
// subprocesses with captured diagnostics.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/procgroup"
)

var (
	startTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_tool_start_total",
		Help: "Total number of external tool process starts",
	}, []string{"tool", "result"})

	exitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_tool_exit_total",
		Help: "Total number of external tool process exits",
	}, []string{"tool", "reason"})
)

// StderrLines is how many trailing stderr lines are kept for diagnostics.
const StderrLines = 20

// Result is what a finished tool run produced.
type Result struct {
	Stdout   []byte
	Stderr   []string
	Duration time.Duration
}

// StderrTail joins the captured stderr lines for logging.
func (r Result) StderrTail() string {
	return strings.Join(r.Stderr, "\n")
}

// Runner executes one external tool binary.
type Runner struct {
	// Bin is the executable name or path.
	Bin string
	// Timeout bounds a single run; zero means the caller's context alone.
	Timeout time.Duration
	// Grace is the SIGTERM to SIGKILL window on cancellation.
	Grace time.Duration
	// CaptureStdout keeps stdout in Result; otherwise it is discarded.
	CaptureStdout bool
}

// Run executes the tool with args and waits for it. A non-zero exit is
// returned as an error wrapping *exec.ExitError; Result is populated either way.
func (r Runner) Run(ctx context.Context, args ...string) (Result, error) {
	tool := toolLabel(r.Bin)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	// #nosec G204 -- binary comes from configuration; args are built internally
	cmd := exec.CommandContext(ctx, r.Bin, args...)
	procgroup.Bind(cmd, r.Grace)

	ring := NewLineRing(StderrLines)
	cmd.Stderr = ring
	var stdout bytes.Buffer
	if r.CaptureStdout {
		cmd.Stdout = &stdout
	}

	logger := log.WithComponentFromContext(ctx, "ffmpeg")
	logger.Debug().
		Str(log.FieldEvent, "tool.start").
		Str("tool", tool).
		Strs("args", args).
		Msg("starting external tool")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		startTotal.WithLabelValues(tool, "error").Inc()
		return Result{}, fmt.Errorf("start %s: %w", tool, err)
	}
	startTotal.WithLabelValues(tool, "ok").Inc()

	err := cmd.Wait()
	ring.Flush()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   ring.LastN(StderrLines),
		Duration: time.Since(start),
	}

	reason := exitReason(ctx, err)
	exitTotal.WithLabelValues(tool, reason).Inc()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s %s: %w", tool, reason, errors.Join(ctxErr, err))
		}
		return res, fmt.Errorf("%s exited: %w", tool, err)
	}
	return res, nil
}

func exitReason(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(ctx.Err(), context.Canceled):
		return "canceled"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "nonzero"
	}
	return "error"
}

func toolLabel(bin string) string {
	base := bin
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".exe")
	switch base {
	case "ffmpeg", "ffprobe":
		return base
	}
	return "other"
}
