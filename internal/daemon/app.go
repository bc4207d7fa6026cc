// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs the long-lived poller process: the queue loop next to
// the ops server, with one shutdown path for both.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vodladder/internal/log"
)

// Loop is the main work loop; Run returns nil once ctx is cancelled.
type Loop interface {
	Run(ctx context.Context) error
}

// App owns the runtime lifecycle and delegates server management to Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	loop    Loop
}

// NewApp creates a new App orchestrator. manager may be nil.
func NewApp(logger zerolog.Logger, manager Manager, loop Loop) *App {
	return &App{logger: logger, manager: manager, loop: loop}
}

// Run blocks until ctx is cancelled or either side fails. The loop ending
// for any reason stops the server.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return ErrMissingLoop
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if a.manager != nil {
		g.Go(func() error {
			err := a.manager.Start(ctx)
			if err != nil {
				a.logger.Error().
					Err(err).
					Str(log.FieldEvent, "daemon.server_failed").
					Msg("ops server stopped with error")
			}
			return err
		})
	}

	g.Go(func() error {
		defer stop()
		err := a.loop.Run(ctx)
		a.logger.Info().
			Err(err).
			Str(log.FieldEvent, "daemon.loop_stopped").
			Msg("work loop stopped")
		return err
	})

	return g.Wait()
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
