// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"errors"
	"fmt"
)

// IntakeError marks a notification that could not be turned into a job.
// The notification stays in the queue.
type IntakeError struct {
	Reason string
	Err    error
}

func (e *IntakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("intake: %s: %v", e.Reason, e.Err)
	}
	return "intake: " + e.Reason
}

func (e *IntakeError) Unwrap() error { return e.Err }

// DispatchError marks a failed worker launch.
type DispatchError struct {
	JobID string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch job %q: %v", e.JobID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// DownloadError marks a failure fetching the source object.
type DownloadError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ProbeFailure marks a probe process that exited non-zero or could not start.
type ProbeFailure struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeFailure) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeFailure) Unwrap() error { return e.Err }

// ProbeParseFailure marks probe output that is malformed or lacks video.
type ProbeParseFailure struct {
	Path string
	Err  error
}

func (e *ProbeParseFailure) Error() string {
	return fmt.Sprintf("parse probe output for %s: %v", e.Path, e.Err)
}

func (e *ProbeParseFailure) Unwrap() error { return e.Err }

// EncodeFailure marks an encoder run that failed for one rendition.
type EncodeFailure struct {
	Resolution string
	Stderr     string
	Err        error
}

func (e *EncodeFailure) Error() string {
	return fmt.Sprintf("encode %sp: %v", e.Resolution, e.Err)
}

func (e *EncodeFailure) Unwrap() error { return e.Err }

// UploadFailure marks the first object write that failed.
type UploadFailure struct {
	Path string
	Err  error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadFailure) Unwrap() error { return e.Err }

// StatusWriteError marks a failed status or metadata write. Never fatal.
type StatusWriteError struct {
	JobID string
	Op    string
	Err   error
}

func (e *StatusWriteError) Error() string {
	return fmt.Sprintf("status %s for %q: %v", e.Op, e.JobID, e.Err)
}

func (e *StatusWriteError) Unwrap() error { return e.Err }

// CleanupError marks a failed working directory release. Never fatal.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// Stage names the pipeline stage an error originated from, for metrics and
// log labels. Unknown errors map to "unknown".
func Stage(err error) string {
	if err == nil {
		return ""
	}
	var (
		intake   *IntakeError
		dispatch *DispatchError
		download *DownloadError
		probe    *ProbeFailure
		parse    *ProbeParseFailure
		encode   *EncodeFailure
		upload   *UploadFailure
		status   *StatusWriteError
		cleanup  *CleanupError
	)
	switch {
	case errors.As(err, &intake):
		return "intake"
	case errors.As(err, &dispatch):
		return "dispatch"
	case errors.As(err, &download):
		return "download"
	case errors.As(err, &probe), errors.As(err, &parse):
		return "analyze"
	case errors.As(err, &encode):
		return "transcode"
	case errors.As(err, &upload):
		return "upload"
	case errors.As(err, &status):
		return "status"
	case errors.As(err, &cleanup):
		return "cleanup"
	}
	return "unknown"
}
