// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotPlaylist = errors.New("missing #EXTM3U header")
	ErrNotVOD      = errors.New("playlist is not a finished VOD playlist")
	ErrNoSegments  = errors.New("playlist has no segments")
)

// MediaPlaylist is what Inspect derives from one rendition playlist.
type MediaPlaylist struct {
	TargetDuration time.Duration
	TotalDuration  time.Duration
	Segments       []string
	// IsVOD is set by #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST.
	IsVOD bool
}

// Inspect parses a media playlist.
func Inspect(playlist string) (*MediaPlaylist, error) {
	scanner := bufio.NewScanner(strings.NewReader(playlist))
	out := &MediaPlaylist{}

	var (
		nextDuration time.Duration
		sawHeader    bool
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawHeader {
			if line != "#EXTM3U" {
				return nil, ErrNotPlaylist
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:VOD"), line == "#EXT-X-ENDLIST":
			out.IsVOD = true
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			secs, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return nil, fmt.Errorf("invalid target duration: %s", line)
			}
			out.TargetDuration = time.Duration(secs) * time.Second
		case strings.HasPrefix(line, "#EXTINF:"):
			durPart := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durPart, ","); idx != -1 {
				durPart = durPart[:idx]
			}
			secs, err := strconv.ParseFloat(durPart, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid EXTINF duration: %s", durPart)
			}
			nextDuration = time.Duration(secs * float64(time.Second))
		case !strings.HasPrefix(line, "#"):
			out.Segments = append(out.Segments, line)
			out.TotalDuration += nextDuration
			nextDuration = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, ErrNotPlaylist
	}
	return out, nil
}

// VerifyVOD reads the playlist at path and checks it is a finished VOD
// playlist with at least one segment.
func VerifyVOD(path string) (*MediaPlaylist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pl, err := Inspect(string(data))
	if err != nil {
		return nil, err
	}
	if !pl.IsVOD {
		return nil, ErrNotVOD
	}
	if len(pl.Segments) == 0 {
		return nil, ErrNoSegments
	}
	return pl, nil
}
