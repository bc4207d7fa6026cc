// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package objectstore abstracts bucket/key addressed object storage.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("object not found")

// PutOptions carries per-object write hints.
type PutOptions struct {
	ContentType string
	// Size is the body length in bytes, or -1 when unknown.
	Size int64
	// ServerSideEncryption requests at-rest encryption (e.g. "AES256").
	ServerSideEncryption string
	// ACL is a canned ACL (e.g. "private"); ignored by backends without ACLs.
	ACL string
}

// Store reads and writes objects.
type Store interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) error
}

// Lister is implemented by stores that can enumerate and delete objects
// under a prefix.
type Lister interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
}
