// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/vodladder/internal/job"
)

// FileEnvelope is the on-disk form of a received notification handed to a
// locally dispatched worker.
type FileEnvelope struct {
	MessageID     string `json:"MessageId"`
	ReceiptHandle string `json:"ReceiptHandle,omitempty"`
	Body          string `json:"Body"`
}

// JobFilePath returns the path of the job file for jobID inside dir.
func JobFilePath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".json")
}

// WriteJobFile persists env atomically and returns its path.
func WriteJobFile(dir, jobID string, env FileEnvelope) (path string, err error) {
	if err := job.ValidateID(jobID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create job file dir: %w", err)
	}
	path = JobFilePath(dir, jobID)

	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode job file: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return "", fmt.Errorf("create pending job file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()
	if _, err := pending.Write(data); err != nil {
		return "", fmt.Errorf("write job file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit job file: %w", err)
	}
	return path, nil
}

// ReadJobFile loads a job file and parses the notification it carries with
// the same rules as the poller.
func ReadJobFile(path string) (FileEnvelope, Parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileEnvelope{}, Parsed{}, &job.IntakeError{Reason: "read job file", Err: err}
	}
	var env FileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return FileEnvelope{}, Parsed{}, &job.IntakeError{Reason: "decode job file", Err: fmt.Errorf("%w: %v", ErrMalformedBody, err)}
	}
	p, err := Parse([]byte(env.Body))
	if err != nil {
		return env, Parsed{}, err
	}
	if p.TestEvent {
		return env, p, &job.IntakeError{Reason: "job file", Err: ErrNoRecord}
	}
	return env, p, nil
}

// RemoveJobFile deletes the job file; a missing file is not an error.
func RemoveJobFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
