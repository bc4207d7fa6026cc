// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vodladder/internal/hls"
	"github.com/ManuGH/vodladder/internal/intake"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/objectstore"
	"github.com/ManuGH/vodladder/internal/status"
	"github.com/ManuGH/vodladder/internal/transcode"
	"github.com/ManuGH/vodladder/internal/upload"
)

type fakeAnalyzer struct {
	md    job.MediaMetadata
	err   error
	input []byte
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string) (job.MediaMetadata, error) {
	f.input, _ = os.ReadFile(path)
	return f.md, f.err
}

// fakeTranscoder lays out an HLS package like the real engine would.
type fakeTranscoder struct {
	got *transcode.Request
	err error
}

func (f *fakeTranscoder) Transcode(_ context.Context, req transcode.Request) (transcode.Result, error) {
	f.got = &req
	if f.err != nil {
		return transcode.Result{}, f.err
	}
	var outs []job.RenditionOutput
	var variants []hls.Variant
	for _, r := range req.Recipe {
		dir := filepath.Join(req.OutputDir, transcode.RenditionDir(r))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return transcode.Result{}, err
		}
		manifest := filepath.Join(dir, "index.m3u8")
		if err := os.WriteFile(manifest, []byte("#EXTM3U\n#EXT-X-ENDLIST\n"), 0o644); err != nil {
			return transcode.Result{}, err
		}
		if err := os.WriteFile(filepath.Join(dir, "segment_000.ts"), []byte("ts"), 0o644); err != nil {
			return transcode.Result{}, err
		}
		outs = append(outs, job.RenditionOutput{Resolution: r.Resolution, Height: r.Height, ManifestPath: r.Resolution + "p/index.m3u8", Bandwidth: r.Bitrate})
		variants = append(variants, hls.Variant{Bandwidth: r.Bitrate, Width: 1, Height: r.Height, URI: r.Resolution + "p/index.m3u8"})
	}
	master := filepath.Join(req.OutputDir, hls.MasterName)
	if err := hls.WriteMasterFile(master, variants); err != nil {
		return transcode.Result{}, err
	}
	return transcode.Result{Renditions: outs, OutputDir: req.OutputDir, MasterPath: master}, nil
}

type fixture struct {
	store    *objectstore.Local
	statuses *status.Memory
	analyzer *fakeAnalyzer
	engine   *fakeTranscoder
	workRoot string
	w        *Worker
}

var clip = job.Descriptor{JobID: "clip", Bucket: "uploads", Key: "videos/clip.mp4"}

func newFixture(t *testing.T, md job.MediaMetadata) *fixture {
	t.Helper()
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), clip.Bucket, clip.Key, bytes.NewReader([]byte("source-bytes")), objectstore.PutOptions{Size: -1}))

	f := &fixture{
		store:    store,
		statuses: status.NewMemory(),
		analyzer: &fakeAnalyzer{md: md},
		engine:   &fakeTranscoder{},
		workRoot: t.TempDir(),
	}
	f.w = New(Config{WorkRoot: f.workRoot}, store, f.analyzer, f.engine,
		upload.New(store, upload.Options{Prune: true}), status.NewRecorder(f.statuses))
	return f
}

func (f *fixture) record(t *testing.T) job.Record {
	t.Helper()
	rec, err := f.statuses.Get(context.Background(), clip.JobID)
	require.NoError(t, err)
	return rec
}

func (f *fixture) assertWorkdirGone(t *testing.T) {
	t.Helper()
	_, err := os.Stat(filepath.Join(f.workRoot, clip.JobID))
	assert.True(t, os.IsNotExist(err), "working directory must be removed")
}

func source720() job.MediaMetadata {
	return job.MediaMetadata{Height: 720, Width: 1280, Codec: "h264", VideoBitRate: 3_000_000, FrameRate: 30, AudioCodec: "aac"}
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t, source720())

	require.NoError(t, f.w.Run(context.Background(), clip))

	assert.Equal(t, []byte("source-bytes"), f.analyzer.input)
	require.NotNil(t, f.engine.got)
	assert.Len(t, f.engine.got.Recipe, 3)

	rec := f.record(t)
	assert.Equal(t, job.StatusDone, rec.Status)
	require.NotNil(t, rec.Metadata)
	assert.Equal(t, 720, rec.Metadata.Height)

	keys, err := f.store.List(context.Background(), "uploads", "processed/clip/")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{
		"processed/clip/360p/index.m3u8",
		"processed/clip/360p/segment_000.ts",
		"processed/clip/480p/index.m3u8",
		"processed/clip/480p/segment_000.ts",
		"processed/clip/720p/index.m3u8",
		"processed/clip/720p/segment_000.ts",
		"processed/clip/master.m3u8",
	}, keys)

	f.assertWorkdirGone(t)
}

func TestRun_EmptyLadderIsDone(t *testing.T) {
	f := newFixture(t, job.MediaMetadata{Height: 240, Codec: "h264", FrameRate: 25})

	require.NoError(t, f.w.Run(context.Background(), clip))

	assert.Nil(t, f.engine.got, "no renditions means no encoder run")
	assert.Equal(t, job.StatusDone, f.record(t).Status)
	keys, err := f.store.List(context.Background(), "uploads", "processed/")
	require.NoError(t, err)
	assert.Empty(t, keys)
	f.assertWorkdirGone(t)
}

func TestRun_EmptyLadderPrunesEarlierPackage(t *testing.T) {
	f := newFixture(t, source720())
	require.NoError(t, f.w.Run(context.Background(), clip))
	keys, err := f.store.List(context.Background(), "uploads", "processed/clip/")
	require.NoError(t, err)
	require.NotEmpty(t, keys)

	// The source was replaced by one too small for any tier.
	f.analyzer.md = job.MediaMetadata{Height: 240, Codec: "h264", FrameRate: 25}
	f.engine.got = nil
	require.NoError(t, f.w.Run(context.Background(), clip))

	assert.Nil(t, f.engine.got)
	assert.Equal(t, job.StatusDone, f.record(t).Status)
	keys, err = f.store.List(context.Background(), "uploads", "processed/clip/")
	require.NoError(t, err)
	assert.Empty(t, keys, "renditions of the earlier source must not outlive it")
	f.assertWorkdirGone(t)
}

func TestRun_Failures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*fixture)
		stage string
	}{
		{
			name:  "download",
			setup: func(f *fixture) { require.NoError(t, f.store.Delete(context.Background(), clip.Bucket, clip.Key)) },
			stage: "download",
		},
		{
			name:  "analyze",
			setup: func(f *fixture) { f.analyzer.err = &job.ProbeFailure{Path: "x", Stderr: "moov atom not found", Err: errors.New("exit 1")} },
			stage: "analyze",
		},
		{
			name:  "transcode",
			setup: func(f *fixture) { f.engine.err = &job.EncodeFailure{Resolution: "480", Err: errors.New("exit 1")} },
			stage: "transcode",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, source720())
			tc.setup(f)

			err := f.w.Run(context.Background(), clip)
			require.Error(t, err)
			assert.Equal(t, tc.stage, job.Stage(err))
			assert.Equal(t, job.StatusFailed, f.record(t).Status)
			f.assertWorkdirGone(t)

			keys, err := f.store.List(context.Background(), "uploads", "processed/")
			require.NoError(t, err)
			assert.Empty(t, keys, "nothing is published for a failed job")
		})
	}
}

type failingPut struct {
	*objectstore.Local
}

func (failingPut) Put(context.Context, string, string, io.Reader, objectstore.PutOptions) error {
	return errors.New("access denied")
}

func TestRun_UploadFailure(t *testing.T) {
	f := newFixture(t, source720())
	f.w.uploader = upload.New(failingPut{f.store}, upload.Options{})

	err := f.w.Run(context.Background(), clip)
	var uf *job.UploadFailure
	require.ErrorAs(t, err, &uf)
	assert.Equal(t, job.StatusFailed, f.record(t).Status)
	f.assertWorkdirGone(t)
}

func TestRun_StatusStoreOutageDoesNotFailJob(t *testing.T) {
	f := newFixture(t, source720())
	f.w.status = status.NewRecorder(brokenStatus{})

	assert.NoError(t, f.w.Run(context.Background(), clip))
	f.assertWorkdirGone(t)
}

func TestRun_InvalidDescriptor(t *testing.T) {
	f := newFixture(t, source720())
	err := f.w.Run(context.Background(), job.Descriptor{JobID: "..", Bucket: "b", Key: "k"})
	var ie *job.IntakeError
	assert.ErrorAs(t, err, &ie)
}

func TestRun_RerunOverwrites(t *testing.T) {
	f := newFixture(t, source720())
	require.NoError(t, f.w.Run(context.Background(), clip))

	// A stale object from an earlier, larger ladder is pruned.
	require.NoError(t, f.store.Put(context.Background(), "uploads", "processed/clip/1080p/index.m3u8", bytes.NewReader([]byte("old")), objectstore.PutOptions{Size: -1}))
	require.NoError(t, f.w.Run(context.Background(), clip))

	_, err := f.store.Get(context.Background(), "uploads", "processed/clip/1080p/index.m3u8")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
	assert.Equal(t, job.StatusDone, f.record(t).Status)
}

func TestRunJobFile(t *testing.T) {
	f := newFixture(t, source720())
	dir := t.TempDir()
	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"videos/clip.mp4"}}}]}`
	path, err := intake.WriteJobFile(dir, "clip", intake.FileEnvelope{MessageID: "m-1", Body: body})
	require.NoError(t, err)

	require.NoError(t, f.w.RunJobFile(context.Background(), path))
	assert.Equal(t, job.StatusDone, f.record(t).Status)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunJobFile_BadFileIsRemoved(t *testing.T) {
	f := newFixture(t, source720())
	path := filepath.Join(t.TempDir(), "clip.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Body":"{\"Event\":\"s3:TestEvent\"}"}`), 0o644))

	err := f.w.RunJobFile(context.Background(), path)
	var ie *job.IntakeError
	require.ErrorAs(t, err, &ie)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOutputLocation(t *testing.T) {
	w := New(Config{OutputBucket: "cdn-origin", OutputPrefix: "/hls/"}, nil, nil, nil, nil, nil)
	bucket, prefix := w.OutputLocation(clip)
	assert.Equal(t, "cdn-origin", bucket)
	assert.Equal(t, "hls/clip", prefix)

	w = New(Config{}, nil, nil, nil, nil, nil)
	bucket, prefix = w.OutputLocation(clip)
	assert.Equal(t, "uploads", bucket)
	assert.Equal(t, "processed/clip", prefix)
}
