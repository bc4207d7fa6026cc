// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package workdir owns the per-job scratch directory.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/vodladder/internal/job"
)

// Dir is an acquired working directory. Only the job that acquired it may
// write there.
type Dir struct {
	root string
	path string
}

// Acquire returns a fresh, empty <root>/<jobID>. Leftovers from a previous
// attempt of the same job are removed first.
func Acquire(root, jobID string) (*Dir, error) {
	if err := job.ValidateID(jobID); err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workdir: resolve root: %w", err)
	}
	path := filepath.Join(absRoot, jobID)
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("workdir: clear stale %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("workdir: create %s: %w", path, err)
	}
	return &Dir{root: absRoot, path: path}, nil
}

// Path is the directory itself.
func (d *Dir) Path() string { return d.path }

// Join resolves elem inside the directory.
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// Release removes the directory and everything below it.
func (d *Dir) Release() error {
	if d == nil {
		return nil
	}
	if err := os.RemoveAll(d.path); err != nil {
		return &job.CleanupError{Path: d.path, Err: err}
	}
	return nil
}
