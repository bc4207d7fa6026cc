// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bootstrap is the composition root: it turns an AppConfig into
// live service handles and owns their shutdown.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vodladder/internal/analyzer"
	"github.com/ManuGH/vodladder/internal/config"
	"github.com/ManuGH/vodladder/internal/ffmpeg"
	xglog "github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/objectstore"
	"github.com/ManuGH/vodladder/internal/platform/awscfg"
	"github.com/ManuGH/vodladder/internal/status"
	"github.com/ManuGH/vodladder/internal/telemetry"
	"github.com/ManuGH/vodladder/internal/transcode"
	"github.com/ManuGH/vodladder/internal/upload"
	"github.com/ManuGH/vodladder/internal/worker"
)

// LoadConfig loads configuration and configures the global logger from it.
func LoadConfig(path, version string) (config.AppConfig, error) {
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		return cfg, fmt.Errorf("failed to load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	logger := xglog.WithComponent("bootstrap")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, path).
		Msg("configuration loaded")

	if b, err := json.Marshal(config.MaskSecrets(cfg)); err == nil {
		logger.Info().
			Str(xglog.FieldEvent, "config.snapshot").
			Str("sha256", fmt.Sprintf("%x", sha256.Sum256(b))).
			Msg("configuration snapshot fingerprint")
		logger.Debug().RawJSON("config", b).Msg("effective configuration")
	}
	return cfg, nil
}

// Container holds the handles shared by every process role.
type Container struct {
	Config   config.AppConfig
	Logger   zerolog.Logger
	Objects  objectstore.Store
	Statuses status.Store
	Recorder *status.Recorder
	Analyzer *analyzer.Analyzer
	Engine   *transcode.Engine
	Worker   *worker.Worker

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error

	closers []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Options select role-specific wiring.
type Options struct {
	// MarkProcessing makes the worker record "processing" itself, for
	// workers started without a poller (remote tasks, manual runs).
	MarkProcessing bool
}

// Wire builds the telemetry provider, object store, status store and the
// worker pipeline. The caller must Close the container.
func Wire(ctx context.Context, cfg config.AppConfig, o Options) (c *Container, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	c = &Container{Config: cfg, Logger: xglog.WithComponent("bootstrap")}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
			c = nil
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	c.onClose("telemetry", tp.Shutdown)

	if c.Objects, err = c.buildObjectStore(ctx); err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	if c.Statuses, err = c.buildStatusStore(ctx); err != nil {
		return nil, fmt.Errorf("status store: %w", err)
	}
	c.onClose("status", func(context.Context) error { return c.Statuses.Close() })
	c.Recorder = status.NewRecorder(c.Statuses, status.WithWriteTimeout(cfg.Status.WriteTimeout))

	c.Analyzer = analyzer.New(ffmpeg.Runner{
		Bin:           cfg.FFmpeg.FFprobeBin,
		Timeout:       cfg.FFmpeg.ProbeTimeout,
		Grace:         cfg.FFmpeg.KillGrace,
		CaptureStdout: true,
	})
	opts := transcode.DefaultOptions()
	opts.Concurrency = cfg.FFmpeg.Concurrency
	opts.SegmentSeconds = cfg.FFmpeg.SegmentSeconds
	c.Engine = transcode.NewEngine(ffmpeg.Runner{
		Bin:     cfg.FFmpeg.Bin,
		Timeout: cfg.FFmpeg.Timeout,
		Grace:   cfg.FFmpeg.KillGrace,
	}, opts)

	uploader := upload.New(c.Objects, upload.Options{
		ServerSideEncryption: cfg.Storage.S3.ServerSideEncryption,
		ACL:                  cfg.Storage.S3.ACL,
		Prune:                cfg.Storage.Prune,
	})
	c.Worker = worker.New(worker.Config{
		WorkRoot:       cfg.Worker.WorkRoot,
		OutputBucket:   cfg.Storage.OutputBucket,
		OutputPrefix:   cfg.Storage.OutputPrefix,
		Timeout:        cfg.Worker.Timeout,
		MarkProcessing: o.MarkProcessing,
	}, c.Objects, c.Analyzer, c.Engine, uploader, c.Recorder)

	c.Logger.Info().
		Str(xglog.FieldEvent, "bootstrap.wired").
		Str("storage", cfg.Storage.Backend).
		Str("status", cfg.Status.Backend).
		Int("concurrency", opts.Concurrency).
		Msg("pipeline wired")
	return c, nil
}

func (c *Container) onClose(name string, fn func(ctx context.Context) error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Close releases every handle in reverse acquisition order.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(ctx); err != nil {
			c.Logger.Warn().Err(err).
				Str(xglog.FieldEvent, "bootstrap.close_failed").
				Str("handle", cl.name).
				Msg("handle did not close cleanly")
			errs = append(errs, fmt.Errorf("%s: %w", cl.name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// aws resolves the shared AWS config once.
func (c *Container) aws(ctx context.Context) (aws.Config, error) {
	c.awsOnce.Do(func() {
		c.awsCfg, c.awsErr = awscfg.Load(ctx, awscfg.Options{
			Region:      c.Config.AWS.Region,
			Profile:     c.Config.AWS.Profile,
			MaxAttempts: c.Config.AWS.MaxAttempts,
			Timeout:     c.Config.AWS.Timeout,
			Tracing:     c.Config.Telemetry.Enabled,
		})
	})
	return c.awsCfg, c.awsErr
}

// executable returns the running binary, used as the default local worker.
func executable() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return p, nil
}
