// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vodladder/internal/app/bootstrap"
	"github.com/ManuGH/vodladder/internal/daemon"
	"github.com/ManuGH/vodladder/internal/health"
	xglog "github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/version"
)

// closeTimeout bounds releasing service handles on exit.
const closeTimeout = 10 * time.Second

func newPollCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Watch the upload queue and dispatch a worker per video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPoll(cmd.Context(), o.configPath)
		},
	}
}

func runPoll(ctx context.Context, configPath string) error {
	cfg, err := bootstrap.LoadConfig(configPath, version.Version)
	if err != nil {
		return err
	}
	logger := xglog.WithComponent("poll")

	ctx, stop := daemon.SignalContext(ctx)
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg, health.RolePoller); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	c, err := bootstrap.Wire(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = c.Close(closeCtx)
	}()

	// Spawned workers resolve the config relative to their own cwd.
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
	}
	stack, err := c.BuildPoller(ctx, bootstrap.PollerOptions{ConfigPath: configPath})
	if err != nil {
		return err
	}

	var mgr daemon.Manager
	if stack.Server != nil {
		mgr, err = daemon.NewManager(daemon.Deps{Logger: logger, Server: stack.Server})
		if err != nil {
			return err
		}
	}

	logger.Info().
		Str(xglog.FieldEvent, "poll.start").
		Str(xglog.FieldDispatch, stack.Dispatcher.Name()).
		Str("queue", cfg.Queue.Backend).
		Str("listen", cfg.API.Listen).
		Msg("poller starting")

	return daemon.NewApp(logger, mgr, stack.Poller).Run(ctx)
}
