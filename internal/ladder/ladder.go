// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ladder decides which renditions to produce for a source.
package ladder

import (
	"strconv"

	"github.com/ManuGH/vodladder/internal/job"
)

// Tier is one rung of the fixed resolution ladder.
type Tier struct {
	Height  int
	Bitrate int64
	// Width is the nominal 16:9 display width advertised in the master manifest.
	Width int
}

// Tiers is the candidate ladder in descending height.
var Tiers = []Tier{
	{Height: 1080, Bitrate: 4_500_000, Width: 1920},
	{Height: 720, Bitrate: 2_500_000, Width: 1280},
	{Height: 480, Bitrate: 1_000_000, Width: 854},
	{Height: 360, Bitrate: 700_000, Width: 640},
}

const (
	// ComplexBitrate is the source video bitrate above which a source is complex.
	ComplexBitrate = 5_000_000
	// ComplexFrameRate is the source frame rate above which a source is complex.
	ComplexFrameRate = 50.0
	// CopyBitrateCeiling is the source video bitrate below which a same-height
	// rendition may pass the bitstream through.
	CopyBitrateCeiling = 2_000_000
	// CopyCodec is the only source codec eligible for passthrough.
	CopyCodec = "h264"

	PresetComplex = "slow"
	PresetSimple  = "veryfast"
)

// Complex reports whether md calls for the slower, higher-quality preset.
func Complex(md job.MediaMetadata) bool {
	return md.VideoBitRate > ComplexBitrate || md.FrameRate > ComplexFrameRate
}

// Plan maps metadata to the ordered rendition recipe. It is pure: no I/O,
// no clock, no randomness. Degenerate input yields an empty recipe.
func Plan(md job.MediaMetadata) []job.RenditionSpec {
	preset := PresetSimple
	if Complex(md) {
		preset = PresetComplex
	}

	recipe := make([]job.RenditionSpec, 0, len(Tiers))
	for _, t := range Tiers {
		if t.Height > md.Height {
			continue
		}
		codec := job.CodecLibx264
		if t.Height == md.Height && md.Codec == CopyCodec && md.VideoBitRate < CopyBitrateCeiling {
			codec = job.CodecCopy
		}
		recipe = append(recipe, job.RenditionSpec{
			Resolution: strconv.Itoa(t.Height),
			Height:     t.Height,
			Bitrate:    t.Bitrate,
			Preset:     preset,
			Codec:      codec,
		})
	}
	return recipe
}

// DisplayWidth returns the nominal width for a ladder height, or a 16:9
// width rounded to even for heights outside the ladder.
func DisplayWidth(height int) int {
	for _, t := range Tiers {
		if t.Height == height {
			return t.Width
		}
	}
	w := height * 16 / 9
	return w + w%2
}
