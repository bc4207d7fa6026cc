// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package intake

import (
	"github.com/ManuGH/vodladder/internal/job"
)

// Environment keys used to inject job parameters into a dispatched worker.
const (
	EnvJobID   = "VODLADDER_JOB_ID"
	EnvBucket  = "VODLADDER_JOB_BUCKET"
	EnvKey     = "VODLADDER_JOB_KEY"
	EnvJobFile = "VODLADDER_JOB_FILE"
)

// Env returns the environment assignments that carry d to a worker.
// Keys are passed decoded.
func Env(d job.Descriptor) map[string]string {
	return map[string]string{
		EnvJobID:  d.JobID,
		EnvBucket: d.Bucket,
		EnvKey:    d.Key,
	}
}

// FromLookup rebuilds a descriptor from injected parameters. The job ID is
// re-derived from the key when absent so both intake paths agree.
func FromLookup(lookup func(string) (string, bool)) (job.Descriptor, error) {
	bucket, _ := lookup(EnvBucket)
	key, _ := lookup(EnvKey)
	d, err := describeDecoded(bucket, key)
	if err != nil {
		return job.Descriptor{}, err
	}
	if id, ok := lookup(EnvJobID); ok && id != "" && id != d.JobID {
		if err := job.ValidateID(id); err != nil {
			return job.Descriptor{}, &job.IntakeError{Reason: "validate injected job id", Err: err}
		}
		d.JobID = id
	}
	return d, nil
}
