// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/vodladder/internal/job"
)

// Common attribute keys for consistent tracing across the pipeline.
const (
	JobIDKey     = "job.id"
	JobStageKey  = "job.stage"
	JobStatusKey = "job.status"

	SourceBucketKey = "source.bucket"
	SourceKeyKey    = "source.key"

	RenditionResolutionKey = "rendition.resolution"
	RenditionBitrateKey    = "rendition.bitrate"
	RenditionCodecKey      = "rendition.codec"
	RenditionPresetKey     = "rendition.preset"

	DispatchStrategyKey = "dispatch.strategy"
	DispatchHandleKey   = "dispatch.handle"
)

// JobAttributes creates span attributes identifying a job.
func JobAttributes(d job.Descriptor) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, d.JobID),
		attribute.String(SourceBucketKey, d.Bucket),
		attribute.String(SourceKeyKey, d.Key),
	}
}

// RenditionAttributes creates span attributes for one rendition encode.
func RenditionAttributes(r job.RenditionSpec) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RenditionResolutionKey, r.Resolution),
		attribute.Int64(RenditionBitrateKey, r.Bitrate),
		attribute.String(RenditionCodecKey, r.Codec),
		attribute.String(RenditionPresetKey, r.Preset),
	}
}
