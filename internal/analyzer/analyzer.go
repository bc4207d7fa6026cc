// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package analyzer probes a local media file and normalizes the result into
// job.MediaMetadata.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ManuGH/vodladder/internal/ffmpeg"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/log"
)

// ErrNoVideo is wrapped by ProbeParseFailure when the file has no video stream.
var ErrNoVideo = errors.New("no video stream")

// probeArgs is the fixed flag set; the file path is appended.
var probeArgs = []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams"}

type probeData struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	BitRate      string `json:"bit_rate"`
	Duration     string `json:"duration"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Analyzer wraps the probe tool.
type Analyzer struct {
	runner ffmpeg.Runner
}

// New returns an Analyzer using the given runner. Stdout capture is forced on.
func New(runner ffmpeg.Runner) *Analyzer {
	runner.CaptureStdout = true
	return &Analyzer{runner: runner}
}

// Analyze probes path once. It fails with *job.ProbeFailure when the tool
// cannot run or exits non-zero, and *job.ProbeParseFailure when the output
// is malformed or lacks a video stream. No retries.
func (a *Analyzer) Analyze(ctx context.Context, path string) (job.MediaMetadata, error) {
	args := append(append([]string(nil), probeArgs...), path)
	res, err := a.runner.Run(ctx, args...)
	if err != nil {
		return job.MediaMetadata{}, &job.ProbeFailure{Path: path, Stderr: res.StderrTail(), Err: err}
	}

	md, err := Parse(res.Stdout)
	if err != nil {
		return job.MediaMetadata{}, &job.ProbeParseFailure{Path: path, Err: err}
	}

	logger := log.WithComponentFromContext(ctx, "analyzer")
	logger.Info().
		Str(log.FieldEvent, "analyzer.probed").
		Str(log.FieldCodec, md.Codec).
		Int("width", md.Width).
		Int("height", md.Height).
		Float64(log.FieldFPS, md.FrameRate).
		Int64("video_bit_rate", md.VideoBitRate).
		Str("audio_codec", md.AudioCodec).
		Dur("probe_duration", res.Duration).
		Msg("source analyzed")
	return md, nil
}

// Parse converts probe JSON output into metadata. The first video stream is
// authoritative; the first audio stream supplies the audio codec.
func Parse(out []byte) (job.MediaMetadata, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return job.MediaMetadata{}, fmt.Errorf("decode probe json: %w", err)
	}

	var video, audio *probeStream
	for i := range data.Streams {
		s := &data.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil {
		return job.MediaMetadata{}, ErrNoVideo
	}

	// r_frame_rate is the stream's base rate; the average only stands in when
	// the base rate is unknown.
	fps, err := ParseFrameRate(video.RFrameRate)
	if err != nil {
		return job.MediaMetadata{}, err
	}
	if fps == 0 {
		if fps, err = ParseFrameRate(video.AvgFrameRate); err != nil {
			return job.MediaMetadata{}, err
		}
	}

	md := job.MediaMetadata{
		Duration:     parseFloat(data.Format.Duration),
		Size:         parseInt(data.Format.Size),
		BitRate:      parseInt(data.Format.BitRate),
		Codec:        video.CodecName,
		Width:        video.Width,
		Height:       video.Height,
		FrameRate:    fps,
		VideoBitRate: parseInt(video.BitRate),
	}
	if md.Duration == 0 {
		md.Duration = parseFloat(video.Duration)
	}
	if audio != nil {
		md.AudioCodec = audio.CodecName
	}
	return md, nil
}

// Optional numeric fields are absent or "N/A" for many containers; those
// resolve to zero.
func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
