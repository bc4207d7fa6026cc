// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/vodladder/internal/job"
)

const (
	playlistName   = "index.m3u8"
	segmentPattern = "segment_%03d.ts"
	fallbackFPS    = 25.0
)

// Options are the pipeline-wide encoder constants.
type Options struct {
	// SegmentSeconds is the fixed HLS segment duration.
	SegmentSeconds int
	// AudioSampleRate is the fixed AAC output sample rate.
	AudioSampleRate int
	// AudioBitrate is passed to -b:a verbatim (e.g. "128k").
	AudioBitrate string
	// Concurrency bounds the number of renditions encoded at once.
	Concurrency int
}

// DefaultOptions returns the canonical sequential configuration.
func DefaultOptions() Options {
	return Options{
		SegmentSeconds:  4,
		AudioSampleRate: 48000,
		AudioBitrate:    "128k",
		Concurrency:     1,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.SegmentSeconds <= 0 {
		o.SegmentSeconds = d.SegmentSeconds
	}
	if o.AudioSampleRate <= 0 {
		o.AudioSampleRate = d.AudioSampleRate
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = d.AudioBitrate
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// RenditionDir is the directory name of a rendition inside the output dir.
func RenditionDir(r job.RenditionSpec) string {
	return r.Resolution + "p"
}

// MaxRate is the VBV peak rate for a target bitrate (about 1.07x).
func MaxRate(bitrate int64) int64 {
	return bitrate * 107 / 100
}

// BufSize is the VBV buffer size for a target bitrate (2x).
func BufSize(bitrate int64) int64 {
	return 2 * bitrate
}

// GOPSize is the keyframe interval in frames aligned to the segment duration.
func GOPSize(fps float64, segmentSeconds int) int {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = fallbackFPS
	}
	g := int(math.Round(fps * float64(segmentSeconds)))
	if g < 1 {
		g = 1
	}
	return g
}

// BuildArgs returns the encoder arguments for one rendition writing into dir.
func BuildArgs(input, dir string, r job.RenditionSpec, md job.MediaMetadata, opts Options) []string {
	opts = opts.normalized()
	seg := strconv.Itoa(opts.SegmentSeconds)

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-loglevel", "error",
		"-i", input,
		"-map", "0:v:0",
	}
	if md.HasAudio() {
		args = append(args, "-map", "0:a:0?")
	}

	if r.Copy() {
		args = append(args, "-c:v", "copy")
	} else {
		gop := strconv.Itoa(GOPSize(md.FrameRate, opts.SegmentSeconds))
		args = append(args,
			"-vf", fmt.Sprintf("scale=-2:%d", r.Height),
			"-c:v", job.CodecLibx264,
			"-preset", r.Preset,
			"-b:v", strconv.FormatInt(r.Bitrate, 10),
			"-maxrate", strconv.FormatInt(MaxRate(r.Bitrate), 10),
			"-bufsize", strconv.FormatInt(BufSize(r.Bitrate), 10),
			"-g", gop,
			"-keyint_min", gop,
			"-sc_threshold", "0",
			"-force_key_frames", "expr:gte(t,n_forced*"+seg+")",
		)
	}

	if md.HasAudio() {
		args = append(args,
			"-c:a", "aac",
			"-ar", strconv.Itoa(opts.AudioSampleRate),
			"-b:a", opts.AudioBitrate,
			"-ac", "2",
		)
	} else {
		args = append(args, "-an")
	}

	args = append(args,
		"-f", "hls",
		"-hls_time", seg,
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(dir, segmentPattern),
		filepath.Join(dir, playlistName),
	)
	return args
}
