// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package worker runs one job end to end: download, analyze, plan,
// transcode, upload and finalize, inside a working directory that is always
// removed afterwards.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/ladder"
	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/metrics"
	"github.com/ManuGH/vodladder/internal/objectstore"
	"github.com/ManuGH/vodladder/internal/status"
	"github.com/ManuGH/vodladder/internal/telemetry"
	"github.com/ManuGH/vodladder/internal/transcode"
	"github.com/ManuGH/vodladder/internal/workdir"
)

// State is a step of the worker state machine.
type State string

const (
	StateStart       State = "start"
	StateDownloading State = "downloading"
	StateAnalyzing   State = "analyzing"
	StatePlanning    State = "planning"
	StateTranscoding State = "transcoding"
	StateUploading   State = "uploading"
	StateFinalizing  State = "finalizing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// DefaultOutputPrefix is the remote prefix under which <jobId>/ is written.
const DefaultOutputPrefix = "processed"

// Analyzer probes a local media file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (job.MediaMetadata, error)
}

// Transcoder renders a recipe into an HLS package.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request) (transcode.Result, error)
}

// Uploader publishes a local directory under a remote prefix.
type Uploader interface {
	Upload(ctx context.Context, bucket, localDir, remotePrefix string) ([]string, error)
}

// Config holds the worker's own settings.
type Config struct {
	WorkRoot string
	// OutputBucket receives the package; empty means the source bucket.
	OutputBucket string
	OutputPrefix string
	// Timeout bounds a whole run; zero means only the per-call bounds apply.
	Timeout time.Duration
	// MarkProcessing writes the "processing" status at start. The poller
	// already does this for dispatched jobs.
	MarkProcessing bool
}

// Worker executes jobs. It is safe to run several jobs concurrently as long
// as their ids differ.
type Worker struct {
	cfg      Config
	source   objectstore.Store
	analyzer Analyzer
	planner  func(job.MediaMetadata) []job.RenditionSpec
	engine   Transcoder
	uploader Uploader
	status   *status.Recorder
}

// New wires a worker. planner may be nil to use the standard ladder.
func New(cfg Config, source objectstore.Store, analyzer Analyzer, engine Transcoder, uploader Uploader, recorder *status.Recorder) *Worker {
	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = DefaultOutputPrefix
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	return &Worker{
		cfg:      cfg,
		source:   source,
		analyzer: analyzer,
		planner:  ladder.Plan,
		engine:   engine,
		uploader: uploader,
		status:   recorder,
	}
}

// OutputLocation returns where the package for d is published.
func (w *Worker) OutputLocation(d job.Descriptor) (bucket, prefix string) {
	bucket = w.cfg.OutputBucket
	if bucket == "" {
		bucket = d.Bucket
	}
	return bucket, path.Join(strings.Trim(w.cfg.OutputPrefix, "/"), d.JobID)
}

// run carries the per-attempt state between stages.
type run struct {
	d        job.Descriptor
	dir      *workdir.Dir
	input    string
	metadata job.MediaMetadata
	recipe   []job.RenditionSpec
	result   transcode.Result
	logger   zerolog.Logger
	state    State
}

func (r *run) enter(s State) {
	r.state = s
	r.logger.Info().
		Str(log.FieldEvent, "worker.stage").
		Str(log.FieldStage, string(s)).
		Msg("stage")
}

// Run executes d to a terminal status. The returned error describes a
// failed job; the status store has been told either way.
func (w *Worker) Run(ctx context.Context, d job.Descriptor) (err error) {
	if verr := d.Validate(); verr != nil {
		return &job.IntakeError{Reason: "validate descriptor", Err: verr}
	}
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	ctx = log.ContextWithJobID(ctx, d.JobID)
	ctx = log.ContextWithAttemptID(ctx, uuid.NewString())
	ctx, span := telemetry.Tracer("worker").Start(ctx, "worker.run")
	span.SetAttributes(telemetry.JobAttributes(d)...)

	r := &run{d: d, logger: log.WithComponentFromContext(ctx, "worker"), state: StateStart}
	r.logger.Info().
		Str(log.FieldEvent, "worker.start").
		Str(log.FieldBucket, d.Bucket).
		Str(log.FieldKey, d.Key).
		Msg("job started")
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("worker panic in %s: %v", r.state, p)
			r.logger.Error().Str(log.FieldEvent, "worker.panic").Interface("panic", p).Msg("worker panicked")
		}
		w.finalize(ctx, r, err)
		w.cleanup(r)
		telemetry.EndSpan(span, err)
		r.logger.Info().
			Str(log.FieldEvent, "worker.finish").
			Str("result", string(r.state)).
			Int64(log.FieldDurationMS, time.Since(start).Milliseconds()).
			Msg("job finished")
	}()

	if w.cfg.MarkProcessing {
		_ = w.status.SetStatus(ctx, d, job.StatusProcessing)
	}

	dir, err := workdir.Acquire(w.cfg.WorkRoot, d.JobID)
	if err != nil {
		return &job.DownloadError{Bucket: d.Bucket, Key: d.Key, Err: err}
	}
	r.dir = dir

	stages := []struct {
		state State
		name  string
		fn    func(context.Context, *run) error
	}{
		{StateDownloading, "download", w.download},
		{StateAnalyzing, "analyze", w.analyze},
		{StatePlanning, "plan", w.plan},
		{StateTranscoding, "transcode", w.transcode},
		{StateUploading, "upload", w.upload},
	}
	for _, st := range stages {
		if st.state == StateTranscoding && len(r.recipe) == 0 {
			// Nothing to encode. Upload still runs so an earlier package
			// under the same prefix is pruned.
			continue
		}
		if err := w.stage(ctx, r, st.state, st.name, st.fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) stage(ctx context.Context, r *run, s State, name string, fn func(context.Context, *run) error) error {
	r.enter(s)
	ctx, span := telemetry.Tracer("worker").Start(ctx, "worker."+name)
	span.SetAttributes(attribute.String(telemetry.JobStageKey, name))
	start := time.Now()
	err := fn(ctx, r)
	metrics.ObserveStage(name, time.Since(start))
	telemetry.EndSpan(span, err)
	return err
}

func (w *Worker) download(ctx context.Context, r *run) error {
	body, err := w.source.Get(ctx, r.d.Bucket, r.d.Key)
	if err != nil {
		return &job.DownloadError{Bucket: r.d.Bucket, Key: r.d.Key, Err: err}
	}
	defer body.Close()

	r.input = r.dir.Join("source" + path.Ext(r.d.Key))
	f, err := os.Create(r.input) // #nosec G304 -- path is inside the job's working directory
	if err != nil {
		return &job.DownloadError{Bucket: r.d.Bucket, Key: r.d.Key, Err: err}
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &job.DownloadError{Bucket: r.d.Bucket, Key: r.d.Key, Err: err}
	}
	r.logger.Debug().Str(log.FieldEvent, "worker.downloaded").Int64("bytes", n).Msg("source downloaded")
	return nil
}

func (w *Worker) analyze(ctx context.Context, r *run) error {
	md, err := w.analyzer.Analyze(ctx, r.input)
	if err != nil {
		return err
	}
	r.metadata = md
	r.logger.Info().
		Str(log.FieldEvent, "worker.analyzed").
		Str(log.FieldCodec, md.Codec).
		Int("height", md.Height).
		Float64(log.FieldFPS, md.FrameRate).
		Int64(log.FieldBitrate, md.VideoBitRate).
		Msg("source analyzed")
	_ = w.status.PutMetadata(ctx, r.d.JobID, md)
	return nil
}

func (w *Worker) plan(_ context.Context, r *run) error {
	r.recipe = w.planner(r.metadata)
	if len(r.recipe) == 0 {
		metrics.EmptyLaddersTotal.Inc()
		r.logger.Warn().
			Str(log.FieldEvent, "worker.empty_ladder").
			Int("height", r.metadata.Height).
			Msg("source is below every ladder tier; nothing to encode")
		return nil
	}
	r.logger.Info().
		Str(log.FieldEvent, "worker.planned").
		Int("renditions", len(r.recipe)).
		Msg("ladder planned")
	return nil
}

func (w *Worker) transcode(ctx context.Context, r *run) error {
	res, err := w.engine.Transcode(ctx, transcode.Request{
		JobID:     r.d.JobID,
		Input:     r.input,
		Metadata:  r.metadata,
		Recipe:    r.recipe,
		OutputDir: r.dir.Join("output"),
	})
	if err != nil {
		return err
	}
	r.result = res
	return nil
}

func (w *Worker) upload(ctx context.Context, r *run) error {
	bucket, prefix := w.OutputLocation(r.d)
	if r.result.OutputDir == "" {
		r.result.OutputDir = r.dir.Join("output")
		if err := os.MkdirAll(r.result.OutputDir, 0o750); err != nil {
			return &job.UploadFailure{Path: r.result.OutputDir, Err: err}
		}
	}
	_, err := w.uploader.Upload(ctx, bucket, r.result.OutputDir, prefix)
	return err
}

func (w *Worker) finalize(ctx context.Context, r *run, err error) {
	r.enter(StateFinalizing)
	st := job.StatusDone
	if err != nil {
		st = job.StatusFailed
	}
	_ = w.status.SetStatus(ctx, r.d, st)

	if err != nil {
		stage := job.Stage(err)
		metrics.IncJob("failed", stage)
		r.state = StateFailed
		ev := r.logger.Error().Err(err).
			Str(log.FieldEvent, "worker.failed").
			Str(log.FieldStage, stage)
		var ef *job.EncodeFailure
		var pf *job.ProbeFailure
		switch {
		case errors.As(err, &ef):
			ev = ev.Str(log.FieldResolution, ef.Resolution).Str("stderr", ef.Stderr)
		case errors.As(err, &pf):
			ev = ev.Str("stderr", pf.Stderr)
		}
		ev.Msg("job failed")
		return
	}
	metrics.IncJob("done", "")
	r.state = StateDone
}

func (w *Worker) cleanup(r *run) {
	if err := r.dir.Release(); err != nil {
		metrics.CleanupFailuresTotal.Inc()
		r.logger.Warn().Err(err).
			Str(log.FieldEvent, "worker.cleanup_failed").
			Str(log.FieldPath, r.dir.Path()).
			Msg("working directory not removed")
	}
}
