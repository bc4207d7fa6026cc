// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	id        string
	body      []byte
	handle    string
	count     int
	visibleAt time.Time
}

// Memory is an in-process queue with SQS-like visibility semantics: a
// received entry is hidden for the visibility timeout and comes back with a
// higher receive count unless deleted.
type Memory struct {
	mu         sync.Mutex
	entries    []*memoryEntry
	seq        int
	wait       time.Duration
	visibility time.Duration
	now        func() time.Time
	notify     chan struct{}
}

func NewMemory(wait, visibility time.Duration) *Memory {
	if visibility <= 0 {
		visibility = 15 * time.Minute
	}
	return &Memory{
		wait:       wait,
		visibility: visibility,
		now:        time.Now,
		notify:     make(chan struct{}, 1),
	}
}

func (q *Memory) Send(_ context.Context, body []byte) (string, error) {
	q.mu.Lock()
	q.seq++
	id := strconv.Itoa(q.seq)
	q.entries = append(q.entries, &memoryEntry{id: id, body: append([]byte(nil), body...)})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return id, nil
}

func (q *Memory) take() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for _, e := range q.entries {
		if now.Before(e.visibleAt) {
			continue
		}
		e.count++
		e.handle = uuid.NewString()
		e.visibleAt = now.Add(q.visibility)
		return &Message{
			ID:           e.id,
			Body:         append([]byte(nil), e.body...),
			Handle:       e.handle,
			ReceiveCount: e.count,
		}
	}
	return nil
}

func (q *Memory) Receive(ctx context.Context) (*Message, error) {
	if msg := q.take(); msg != nil {
		return msg, nil
	}
	if q.wait <= 0 {
		return nil, ctx.Err()
	}
	timer := time.NewTimer(q.wait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return q.take(), nil
		case <-q.notify:
			if msg := q.take(); msg != nil {
				return msg, nil
			}
		}
	}
}

// Delete removes the entry only when handle is its latest delivery.
func (q *Memory) Delete(_ context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.handle == handle && handle != "" {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return ErrUnknownHandle
}

// Len reports entries not yet deleted, visible or not.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Memory) Ping(context.Context) error { return nil }

func (q *Memory) Close() error { return nil }
