// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/vodladder/internal/job"
)

func TestJobAttributes(t *testing.T) {
	attrs := JobAttributes(job.Descriptor{JobID: "clip", Bucket: "uploads", Key: "videos/clip.mp4"})
	got := map[string]string{}
	for _, a := range attrs {
		got[string(a.Key)] = a.Value.AsString()
	}
	assert.Equal(t, map[string]string{
		JobIDKey:        "clip",
		SourceBucketKey: "uploads",
		SourceKeyKey:    "videos/clip.mp4",
	}, got)
}

func TestRenditionAttributes(t *testing.T) {
	attrs := RenditionAttributes(job.RenditionSpec{Resolution: "720", Bitrate: 2_500_000, Codec: "libx264", Preset: "veryfast"})
	assert.Len(t, attrs, 4)
	assert.Equal(t, int64(2_500_000), attrs[1].Value.AsInt64())
}
