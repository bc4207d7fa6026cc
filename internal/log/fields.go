// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldJobID     = "job_id"
	FieldAttemptID = "attempt_id"
	FieldMessageID = "message_id"
	FieldHandle    = "handle"
	FieldRequestID = "request_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldDispatch  = "dispatch"
	FieldBackend   = "backend"

	// Media fields
	FieldCodec      = "codec"
	FieldResolution = "resolution"
	FieldPreset     = "preset"
	FieldBitrate    = "bitrate"
	FieldFPS        = "fps"

	// Source / destination fields
	FieldBucket = "bucket"
	FieldKey    = "key"
	FieldPath   = "path"
	FieldPrefix = "prefix"

	FieldDurationMS = "duration_ms"
)
