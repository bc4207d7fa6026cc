// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vodladder/internal/config"
	"github.com/ManuGH/vodladder/internal/dispatch"
	"github.com/ManuGH/vodladder/internal/health"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/queue"
	"github.com/ManuGH/vodladder/internal/status"
)

// localConfig needs no network: in-memory queue and status, filesystem objects.
func localConfig(t *testing.T) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Queue.Backend = config.QueueMemory
	cfg.Storage.Backend = config.StorageLocal
	cfg.Storage.Local.Root = filepath.Join(dir, "objects")
	cfg.Status.Backend = config.StatusMemory
	cfg.Dispatch.Strategy = config.DispatchInline
	cfg.Worker.WorkRoot = filepath.Join(dir, "work")
	cfg.API.Listen = ""
	return cfg
}

func TestWire_NilContext(t *testing.T) {
	//nolint:staticcheck // deliberately nil
	_, err := Wire(nil, localConfig(t), Options{})
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestWire_LocalBackends(t *testing.T) {
	c, err := Wire(context.Background(), localConfig(t), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	assert.NotNil(t, c.Objects)
	assert.IsType(t, &status.Memory{}, c.Statuses)
	assert.NotNil(t, c.Recorder)
	assert.NotNil(t, c.Worker)
}

func TestWire_UnknownBackendReleasesHandles(t *testing.T) {
	cfg := localConfig(t)
	cfg.Status.Backend = "etcd"

	c, err := Wire(context.Background(), cfg, Options{})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestWire_SQLiteStatus(t *testing.T) {
	cfg := localConfig(t)
	cfg.Status.Backend = config.StatusSQLite
	cfg.Status.SQLite.Path = filepath.Join(t.TempDir(), "status.db")

	c, err := Wire(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(context.Background())) }()

	d := job.Descriptor{JobID: "clip", Bucket: "uploads", Key: "clip.mp4"}
	require.NoError(t, c.Recorder.SetStatus(context.Background(), d, job.StatusProcessing))

	rec, err := c.Recorder.Get(context.Background(), "clip")
	require.NoError(t, err)
	assert.Equal(t, job.StatusProcessing, rec.Status)
}

func TestBuildPoller_RedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := localConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Queue.Backend = config.QueueRedis
	cfg.Queue.Redis.Consumer = "test"
	cfg.Status.Backend = config.StatusRedis

	c, err := Wire(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(context.Background())) }()

	stack, err := c.BuildPoller(context.Background(), PollerOptions{})
	require.NoError(t, err)
	assert.IsType(t, &queue.RedisStream{}, stack.Queue)
	require.NoError(t, stack.Queue.Ping(context.Background()))

	ready := stack.Health.Ready(context.Background(), true)
	assert.True(t, ready.Ready)
}

func TestBuildPoller_InlineDecorators(t *testing.T) {
	cfg := localConfig(t)
	cfg.Dispatch.Breaker.Threshold = 3
	cfg.Dispatch.RatePerSecond = 2
	cfg.Dispatch.RateBurst = 1

	c, err := Wire(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()

	stack, err := c.BuildPoller(context.Background(), PollerOptions{})
	require.NoError(t, err)

	assert.IsType(t, &dispatch.RateLimited{}, stack.Dispatcher)
	assert.Equal(t, dispatch.StrategyInline, stack.Dispatcher.Name())
	assert.IsType(t, &queue.Memory{}, stack.Queue)
	assert.Nil(t, stack.Server)

	resp := stack.Health.Ready(context.Background(), true)
	assert.True(t, resp.Ready)
	assert.Equal(t, health.StatusHealthy, resp.Status)
}

func TestBuildPoller_LocalDispatchAndServer(t *testing.T) {
	cfg := localConfig(t)
	cfg.Dispatch.Strategy = config.DispatchLocal
	cfg.Dispatch.Local.Command = []string{"/bin/true"}
	cfg.Dispatch.Breaker.Threshold = 0
	cfg.API.Listen = "127.0.0.1:0"

	c, err := Wire(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()

	stack, err := c.BuildPoller(context.Background(), PollerOptions{ConfigPath: "/etc/vodladder.yaml"})
	require.NoError(t, err)
	assert.IsType(t, &dispatch.Local{}, stack.Dispatcher)
	require.NotNil(t, stack.Server)
	assert.Equal(t, "127.0.0.1:0", stack.Server.Addr)
}

func TestLoopMaxAge_CoversSynchronousDispatch(t *testing.T) {
	cfg := localConfig(t)
	cfg.Poller.IdleSleep = time.Second
	cfg.Poller.ErrorBackoff = time.Second
	cfg.Dispatch.Local.Timeout = time.Hour
	cfg.Worker.Timeout = 2 * time.Hour

	c := &Container{Config: cfg}
	base := 2*time.Second + time.Minute

	c.Config.Dispatch.Strategy = config.DispatchECS
	assert.Equal(t, base, c.loopMaxAge())
	c.Config.Dispatch.Strategy = config.DispatchLocal
	assert.Equal(t, base+time.Hour, c.loopMaxAge())
	c.Config.Dispatch.Strategy = config.DispatchInline
	assert.Equal(t, base+2*time.Hour, c.loopMaxAge())
}

func TestClose_ReverseOrderJoinsErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	c := &Container{}
	c.onClose("first", func(context.Context) error { order = append(order, "first"); return nil })
	c.onClose("second", func(context.Context) error { order = append(order, "second"); return boom })

	err := c.Close(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, order)

	// Closers run once.
	require.NoError(t, c.Close(context.Background()))
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
queue:
  backend: memory
status:
  backend: memory
storage:
  backend: local
  local:
    root: `+t.TempDir()+`
`), 0o600))

	cfg, err := LoadConfig(path, "v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, config.QueueMemory, cfg.Queue.Backend)
}

func TestLoadConfig_InvalidFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  backend: kafka\n"), 0o600))

	_, err := LoadConfig(path, "test")
	assert.Error(t, err)
}
