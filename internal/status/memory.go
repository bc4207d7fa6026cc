// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
)

// Memory is a process-local Store. Records do not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string]job.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]job.Record)}
}

func (m *Memory) SetStatus(_ context.Context, t Transition) error {
	if err := validTransition(t); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[t.JobID]
	apply(&rec, t)
	m.records[t.JobID] = rec
	return nil
}

func (m *Memory) PutMetadata(_ context.Context, jobID string, md job.MediaMetadata, at time.Time) error {
	if err := job.ValidateID(jobID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[jobID]
	rec.JobID = jobID
	cp := md
	rec.Metadata = &cp
	touch(&rec, at)
	m.records[jobID] = rec
	return nil
}

func (m *Memory) Get(_ context.Context, jobID string) (job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[jobID]
	if !ok {
		return job.Record{}, ErrNotFound
	}
	if rec.Metadata != nil {
		cp := *rec.Metadata
		rec.Metadata = &cp
	}
	return rec, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
