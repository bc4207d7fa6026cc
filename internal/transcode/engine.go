// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcode turns a source file and a rendition recipe into an HLS
// package: one segmented stream and playlist per rendition plus a master
// manifest.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vodladder/internal/ffmpeg"
	"github.com/ManuGH/vodladder/internal/hls"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/ladder"
	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/metrics"
	"github.com/ManuGH/vodladder/internal/telemetry"
)

// Request describes one job's transcode.
type Request struct {
	JobID    string
	Input    string
	Metadata job.MediaMetadata
	Recipe   []job.RenditionSpec
	// OutputDir is recreated empty before encoding starts.
	OutputDir string
}

// Result is the realized HLS package.
type Result struct {
	Renditions []job.RenditionOutput
	OutputDir  string
	MasterPath string
}

// Engine runs the encoder once per rendition.
type Engine struct {
	runner ffmpeg.Runner
	opts   Options
}

// NewEngine returns an Engine invoking the encoder through runner.
func NewEngine(runner ffmpeg.Runner, opts Options) *Engine {
	runner.CaptureStdout = false
	return &Engine{runner: runner, opts: opts.normalized()}
}

// Options returns the effective encoder options.
func (e *Engine) Options() Options {
	return e.opts
}

// Transcode encodes every rendition in req.Recipe. The first failing
// rendition aborts the others and is returned as *job.EncodeFailure; no
// master manifest is written in that case. On success the output list has
// the recipe's length and order.
func (e *Engine) Transcode(ctx context.Context, req Request) (Result, error) {
	if err := os.RemoveAll(req.OutputDir); err != nil {
		return Result{}, fmt.Errorf("reset output dir: %w", err)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	outputs := make([]job.RenditionOutput, len(req.Recipe))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, r := range req.Recipe {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := e.encode(gctx, req, r)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	variants := make([]hls.Variant, 0, len(outputs))
	for _, o := range outputs {
		variants = append(variants, hls.Variant{
			Bandwidth: o.Bandwidth,
			Width:     ladder.DisplayWidth(o.Height),
			Height:    o.Height,
			URI:       o.ManifestPath,
		})
	}
	master := filepath.Join(req.OutputDir, hls.MasterName)
	if len(variants) > 0 {
		if err := hls.WriteMasterFile(master, variants); err != nil {
			return Result{}, err
		}
	} else {
		master = ""
	}

	return Result{Renditions: outputs, OutputDir: req.OutputDir, MasterPath: master}, nil
}

func (e *Engine) encode(ctx context.Context, req Request, r job.RenditionSpec) (out job.RenditionOutput, err error) {
	ctx, span := telemetry.Tracer("transcode").Start(ctx, "transcode.rendition")
	span.SetAttributes(telemetry.RenditionAttributes(r)...)
	defer func() { telemetry.EndSpan(span, err) }()

	logger := log.WithComponentFromContext(ctx, "transcode")
	dirName := RenditionDir(r)
	dir := filepath.Join(req.OutputDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		metrics.IncRendition(r.Resolution, r.Codec, "failed")
		return out, &job.EncodeFailure{Resolution: r.Resolution, Err: err}
	}

	res, runErr := e.runner.Run(ctx, BuildArgs(req.Input, dir, r, req.Metadata, e.opts)...)
	if runErr != nil {
		metrics.IncRendition(r.Resolution, r.Codec, "failed")
		logger.Error().Err(runErr).
			Str(log.FieldEvent, "transcode.rendition_failed").
			Str(log.FieldResolution, r.Resolution).
			Str("stderr", res.StderrTail()).
			Msg("encoder failed")
		return out, &job.EncodeFailure{Resolution: r.Resolution, Stderr: res.StderrTail(), Err: runErr}
	}

	pl, err := hls.VerifyVOD(filepath.Join(dir, playlistName))
	if err != nil {
		metrics.IncRendition(r.Resolution, r.Codec, "failed")
		return out, &job.EncodeFailure{Resolution: r.Resolution, Err: fmt.Errorf("verify playlist: %w", err)}
	}

	metrics.IncRendition(r.Resolution, r.Codec, "ok")
	logger.Info().
		Str(log.FieldEvent, "transcode.rendition_done").
		Str(log.FieldResolution, r.Resolution).
		Str(log.FieldCodec, r.Codec).
		Str(log.FieldPreset, r.Preset).
		Int("segments", len(pl.Segments)).
		Dur("elapsed", res.Duration).
		Msg("rendition encoded")

	return job.RenditionOutput{
		Resolution:   r.Resolution,
		Height:       r.Height,
		ManifestPath: path.Join(dirName, playlistName),
		Bandwidth:    r.Bitrate,
	}, nil
}
