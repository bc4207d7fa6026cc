// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrInvalidKey is returned for bucket names or keys that would escape the root.
var ErrInvalidKey = errors.New("invalid bucket or key")

// Local is a Store on the local filesystem laid out as <root>/<bucket>/<key>.
// Writes are atomic.
type Local struct {
	root string
}

// NewLocal returns a filesystem store rooted at root.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("local object store: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

func (l *Local) path(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidKey, bucket)
	}
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: key %q", ErrInvalidKey, key)
	}
	return filepath.Join(l.root, bucket, filepath.FromSlash(clean)), nil
}

// Get opens an object for reading.
func (l *Local) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, err
	}
	return f, nil
}

// Put writes an object atomically. Content type and hints are not persisted.
func (l *Local) Put(ctx context.Context, bucket, key string, body io.Reader, _ PutOptions) error {
	p, err := l.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	pending, err := renameio.NewPendingFile(p, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending object: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()
	if _, err := io.Copy(pending, body); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

// List returns every key under prefix, using forward slashes.
func (l *Local) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	base := filepath.Join(l.root, bucket)
	if _, err := l.path(bucket, "x"); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

// Delete removes an object; a missing object is not an error.
func (l *Local) Delete(ctx context.Context, bucket, key string) error {
	p, err := l.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
