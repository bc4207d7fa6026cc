// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vodladder/internal/ffmpeg"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/ladder"
)

// fakeEncoder writes a shell script standing in for ffmpeg. It logs its
// arguments, fails when asked to scale to failHeight, and otherwise writes
// one segment plus a finished VOD playlist at the path given last.
func fakeEncoder(t *testing.T, failHeight string) (bin, argsLog string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	argsLog = filepath.Join(dir, "args.log")
	bin = filepath.Join(dir, "ffmpeg")
	script := `#!/bin/sh
echo "$*" >> "` + argsLog + `"
out=""
for a in "$@"; do out="$a"; done
case "$*" in
  *"scale=-2:` + failHeight + ` "*) echo "Error while encoding" >&2; exit 1 ;;
esac
d=$(dirname "$out")
printf 'ts' > "$d/segment_000.ts"
printf '#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n#EXT-X-PLAYLIST-TYPE:VOD\n#EXTINF:4.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n' > "$out"
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsLog
}

func source1080() job.MediaMetadata {
	return job.MediaMetadata{Height: 1080, Width: 1920, Codec: "h264", VideoBitRate: 1_500_000, FrameRate: 30, AudioCodec: "aac"}
}

func TestTranscodeFullLadder(t *testing.T) {
	bin, _ := fakeEncoder(t, "none")
	out := filepath.Join(t.TempDir(), "output")
	md := source1080()
	recipe := ladder.Plan(md)

	res, err := NewEngine(ffmpeg.Runner{Bin: bin}, DefaultOptions()).Transcode(context.Background(), Request{
		JobID: "clip", Input: "/src/in.mp4", Metadata: md, Recipe: recipe, OutputDir: out,
	})
	require.NoError(t, err)
	require.Len(t, res.Renditions, len(recipe))
	for i, r := range recipe {
		assert.Equal(t, r.Resolution, res.Renditions[i].Resolution)
		assert.Equal(t, r.Bitrate, res.Renditions[i].Bandwidth)
		assert.Equal(t, r.Resolution+"p/index.m3u8", res.Renditions[i].ManifestPath)
		assert.FileExists(t, filepath.Join(out, r.Resolution+"p", "segment_000.ts"))
	}

	assert.Equal(t, filepath.Join(out, "master.m3u8"), res.MasterPath)
	master, err := os.ReadFile(res.MasterPath)
	require.NoError(t, err)
	assert.Contains(t, string(master), "#EXT-X-STREAM-INF:BANDWIDTH=4500000,RESOLUTION=1920x1080\n1080p/index.m3u8")
	assert.Contains(t, string(master), "#EXT-X-STREAM-INF:BANDWIDTH=700000,RESOLUTION=640x360\n360p/index.m3u8")
}

func TestTranscodeFailureAbortsRemainingRenditions(t *testing.T) {
	bin, argsLog := fakeEncoder(t, "720")
	out := filepath.Join(t.TempDir(), "output")
	md := source1080()

	_, err := NewEngine(ffmpeg.Runner{Bin: bin}, DefaultOptions()).Transcode(context.Background(), Request{
		JobID: "clip", Input: "/src/in.mp4", Metadata: md, Recipe: ladder.Plan(md), OutputDir: out,
	})
	var ef *job.EncodeFailure
	require.True(t, errors.As(err, &ef), "got %v", err)
	assert.Equal(t, "720", ef.Resolution)
	assert.Contains(t, ef.Stderr, "Error while encoding")

	logged, readErr := os.ReadFile(argsLog)
	require.NoError(t, readErr)
	assert.Equal(t, 2, strings.Count(string(logged), "\n"), "480p and 360p must not be attempted")
	assert.NoFileExists(t, filepath.Join(out, "master.m3u8"))
}

func TestTranscodeConcurrentPreservesOrder(t *testing.T) {
	bin, _ := fakeEncoder(t, "none")
	md := source1080()
	recipe := ladder.Plan(md)
	opts := DefaultOptions()
	opts.Concurrency = 4

	res, err := NewEngine(ffmpeg.Runner{Bin: bin}, opts).Transcode(context.Background(), Request{
		JobID: "clip", Input: "in.mp4", Metadata: md, Recipe: recipe, OutputDir: filepath.Join(t.TempDir(), "out"),
	})
	require.NoError(t, err)
	require.Len(t, res.Renditions, len(recipe))
	for i := range recipe {
		assert.Equal(t, recipe[i].Resolution, res.Renditions[i].Resolution)
	}
}

func TestTranscodeConcurrentFailureIsAllOrNothing(t *testing.T) {
	bin, _ := fakeEncoder(t, "480")
	md := source1080()
	opts := DefaultOptions()
	opts.Concurrency = 4
	out := filepath.Join(t.TempDir(), "out")

	res, err := NewEngine(ffmpeg.Runner{Bin: bin}, opts).Transcode(context.Background(), Request{
		JobID: "clip", Input: "in.mp4", Metadata: md, Recipe: ladder.Plan(md), OutputDir: out,
	})
	require.Error(t, err)
	assert.Empty(t, res.Renditions)
	assert.NoFileExists(t, filepath.Join(out, "master.m3u8"))
}

func TestTranscodeResetsStaleOutput(t *testing.T) {
	bin, _ := fakeEncoder(t, "none")
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "1080p"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "1080p", "segment_999.ts"), []byte("old"), 0o644))

	md := job.MediaMetadata{Height: 480, Codec: "h264", VideoBitRate: 800_000, FrameRate: 25}
	_, err := NewEngine(ffmpeg.Runner{Bin: bin}, DefaultOptions()).Transcode(context.Background(), Request{
		JobID: "clip", Input: "in.mp4", Metadata: md, Recipe: ladder.Plan(md), OutputDir: out,
	})
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(out, "1080p"))
}

func TestTranscodeEmptyRecipe(t *testing.T) {
	bin, argsLog := fakeEncoder(t, "none")
	res, err := NewEngine(ffmpeg.Runner{Bin: bin}, DefaultOptions()).Transcode(context.Background(), Request{
		JobID: "tiny", Input: "in.mp4", OutputDir: filepath.Join(t.TempDir(), "out"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Renditions)
	assert.Empty(t, res.MasterPath)
	assert.NoFileExists(t, argsLog)
}
