// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vodladder/internal/config"
	"github.com/ManuGH/vodladder/internal/log"
)

// Role selects which local dependencies a process needs.
type Role string

const (
	// RolePoller runs the queue loop; it encodes only with inline dispatch.
	RolePoller Role = "poller"
	// RoleWorker runs one job.
	RoleWorker Role = "worker"
)

// PerformStartupChecks validates the environment before the process starts work.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig, role Role) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Str("role", string(role)).Msg("running pre-flight startup checks")

	encodes := role == RoleWorker || cfg.Dispatch.Strategy == config.DispatchInline
	if encodes {
		if err := checkWritableDir(logger, cfg.Worker.WorkRoot); err != nil {
			return fmt.Errorf("work root check failed: %w", err)
		}
		for _, bin := range []string{cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin} {
			path, err := exec.LookPath(bin)
			if err != nil {
				return fmt.Errorf("binary not found (%s): %w", bin, err)
			}
			logger.Info().Str("bin", path).Msg("encoder dependency available")
		}
	}

	if role == RolePoller && cfg.Dispatch.Strategy == config.DispatchLocal && cfg.Dispatch.Local.JobFileDir != "" {
		if err := checkWritableDir(logger, cfg.Dispatch.Local.JobFileDir); err != nil {
			return fmt.Errorf("job file dir check failed: %w", err)
		}
	}

	if cfg.Status.Backend == config.StatusMemory {
		logger.Warn().
			Str("status_backend", cfg.Status.Backend).
			Msg("status store is in memory; job status is lost on restart and invisible to other processes")
	}
	if cfg.Queue.Backend == config.QueueMemory && role == RolePoller {
		logger.Warn().Msg("queue is in memory; notifications are only visible to this process")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("directory is writable")
	return nil
}
