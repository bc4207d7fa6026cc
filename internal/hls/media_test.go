// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(name string) string {
	return filepath.Join("testdata", "fixtures", name)
}

func TestVerifyVOD(t *testing.T) {
	pl, err := VerifyVOD(fixture("vod.m3u8"))
	require.NoError(t, err)
	assert.True(t, pl.IsVOD)
	assert.Equal(t, []string{"segment_000.ts", "segment_001.ts", "segment_002.ts"}, pl.Segments)
	assert.Equal(t, 4*time.Second, pl.TargetDuration)
	assert.Equal(t, 10500*time.Millisecond, pl.TotalDuration)
}

func TestVerifyVODFailures(t *testing.T) {
	tests := []struct {
		fixture string
		want    error
	}{
		{"event_unfinished.m3u8", ErrNotVOD},
		{"vod_empty.m3u8", ErrNoSegments},
		{"invalid_missing_extm3u.m3u8", ErrNotPlaylist},
	}
	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			_, err := VerifyVOD(fixture(tt.fixture))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := VerifyVOD(fixture("missing.m3u8"))
	assert.Error(t, err)
}

func TestInspectRejectsBadDurations(t *testing.T) {
	_, err := Inspect("#EXTM3U\n#EXTINF:abc,\nseg.ts\n")
	assert.Error(t, err)

	_, err = Inspect("#EXTM3U\n#EXT-X-TARGETDURATION:x\n")
	assert.Error(t, err)

	_, err = Inspect("")
	assert.ErrorIs(t, err, ErrNotPlaylist)
}
