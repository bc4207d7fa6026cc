// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vodladder/internal/log"
)

type loopFunc func(ctx context.Context) error

func (f loopFunc) Run(ctx context.Context) error { return f(ctx) }

func blockingLoop(started chan<- struct{}) Loop {
	return loopFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	})
}

func TestApp_MissingLoop(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingLoop)
}

func TestApp_StopsOnCancel(t *testing.T) {
	mgr, err := NewManager(Deps{Logger: log.WithComponent("test"), Server: okServer()})
	require.NoError(t, err)

	started := make(chan struct{})
	app := NewApp(log.WithComponent("test"), mgr, blockingLoop(started))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	<-started
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_LoopErrorStopsServer(t *testing.T) {
	mgr, err := NewManager(Deps{Logger: log.WithComponent("test"), Server: okServer()})
	require.NoError(t, err)

	boom := errors.New("queue gone")
	app := NewApp(log.WithComponent("test"), mgr, loopFunc(func(context.Context) error { return boom }))

	err = app.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestApp_BindFailureStopsLoop(t *testing.T) {
	taken := httptest.NewServer(http.NotFoundHandler())
	defer taken.Close()

	srv := okServer()
	srv.Addr = taken.Listener.Addr().String()
	mgr, err := NewManager(Deps{Logger: log.WithComponent("test"), Server: srv})
	require.NoError(t, err)

	started := make(chan struct{})
	app := NewApp(log.WithComponent("test"), mgr, blockingLoop(started))

	err = app.Run(context.Background())
	assert.ErrorIs(t, err, ErrServerStartFailed)
}

func TestApp_WithoutManager(t *testing.T) {
	ran := false
	app := NewApp(log.WithComponent("test"), nil, loopFunc(func(context.Context) error {
		ran = true
		return nil
	}))
	require.NoError(t, app.Run(context.Background()))
	assert.True(t, ran)
}
