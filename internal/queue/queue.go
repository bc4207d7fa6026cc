// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue receives upload notifications and deletes them once their job
// has been handed off.
package queue

import (
	"context"
	"errors"
)

// ErrUnknownHandle is returned by Delete for a handle the queue no longer
// tracks.
var ErrUnknownHandle = errors.New("queue: unknown delivery handle")

// Message is one delivery of a notification. Handle is only valid for the
// delivery it came with.
type Message struct {
	ID           string
	Body         []byte
	Handle       string
	ReceiveCount int
}

// Queue is the notification source the poller drains.
type Queue interface {
	// Receive waits up to the backend's long-poll window for at most one
	// message. It returns (nil, nil) when nothing arrived.
	Receive(ctx context.Context) (*Message, error)
	// Delete commits a delivery so it is never redelivered.
	Delete(ctx context.Context, handle string) error
	Ping(ctx context.Context) error
	Close() error
}

// Sender is implemented by backends that accept new notifications from this
// process.
type Sender interface {
	Send(ctx context.Context, body []byte) (string, error)
}
