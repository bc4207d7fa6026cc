// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package job holds the data model shared by every pipeline stage: the job
// descriptor, analysis metadata, the rendition recipe and the status record.
package job

import (
	"fmt"
	"time"
)

// Descriptor identifies one unit of work. It is immutable once created.
type Descriptor struct {
	JobID  string `json:"jobId"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Validate reports whether the descriptor can address a working directory
// and a source object.
func (d Descriptor) Validate() error {
	if err := ValidateID(d.JobID); err != nil {
		return err
	}
	if d.Bucket == "" {
		return fmt.Errorf("job %q: empty bucket", d.JobID)
	}
	if d.Key == "" {
		return fmt.Errorf("job %q: empty key", d.JobID)
	}
	return nil
}

// MediaMetadata is the analysis result for one source file.
type MediaMetadata struct {
	Duration     float64 `json:"duration"`
	Size         int64   `json:"size"`
	BitRate      int64   `json:"bitRate"`
	Codec        string  `json:"codec"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FrameRate    float64 `json:"frameRate"`
	VideoBitRate int64   `json:"videoBitRate"`
	AudioCodec   string  `json:"audioCodec,omitempty"`
}

// HasAudio reports whether the source carries an audio stream.
func (m MediaMetadata) HasAudio() bool {
	return m.AudioCodec != ""
}

// Codec decisions for a rendition.
const (
	CodecCopy    = "copy"
	CodecLibx264 = "libx264"
)

// RenditionSpec is one planned output of the ladder.
type RenditionSpec struct {
	Resolution string `json:"resolution"`
	Height     int    `json:"height"`
	Bitrate    int64  `json:"bitrate"`
	Preset     string `json:"preset"`
	Codec      string `json:"codec"`
}

// Copy reports whether the rendition passes the source bitstream through.
func (r RenditionSpec) Copy() bool {
	return r.Codec == CodecCopy
}

// RenditionOutput is the realized artifact of one RenditionSpec.
type RenditionOutput struct {
	Resolution   string `json:"resolution"`
	Height       int    `json:"height"`
	ManifestPath string `json:"manifestPath"`
	Bandwidth    int64  `json:"bandwidth"`
}

// Status is the lifecycle state recorded in the status store.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends the job lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Record is the persisted view of one job.
type Record struct {
	JobID     string         `json:"jobId"`
	Status    Status         `json:"status"`
	Bucket    string         `json:"bucket,omitempty"`
	Key       string         `json:"key,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Metadata  *MediaMetadata `json:"metadata,omitempty"`
}
