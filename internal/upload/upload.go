// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package upload publishes a job's local output tree to the object store.
package upload

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/metrics"
	"github.com/ManuGH/vodladder/internal/objectstore"
)

// Content types by extension.
const (
	ContentTypeManifest = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/mp2t"
	ContentTypeBinary   = "application/octet-stream"
)

// ContentTypeFor maps a file name to its upload content type.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(filepath.ToSlash(name))) {
	case ".m3u8":
		return ContentTypeManifest
	case ".ts":
		return ContentTypeSegment
	}
	return ContentTypeBinary
}

// Options are write hints applied to every uploaded object.
type Options struct {
	ServerSideEncryption string
	ACL                  string
	// Prune deletes objects under the prefix that this upload did not write.
	Prune bool
}

// Uploader walks a local directory into a remote prefix.
type Uploader struct {
	store objectstore.Store
	opts  Options
}

// New returns an Uploader writing through store.
func New(store objectstore.Store, opts Options) *Uploader {
	return &Uploader{store: store, opts: opts}
}

// Upload writes every regular file under localDir to
// remotePrefix/<relative path> with forward slashes. The first failed write
// aborts with *job.UploadFailure; earlier objects are left in place.
// It returns the uploaded keys in walk order.
func (u *Uploader) Upload(ctx context.Context, bucket, localDir, remotePrefix string) ([]string, error) {
	prefix := strings.Trim(filepath.ToSlash(remotePrefix), "/")
	logger := log.WithComponentFromContext(ctx, "upload")

	var files []string
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &job.UploadFailure{Path: localDir, Err: err}
	}

	keys := make([]string, 0, len(files))
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return keys, &job.UploadFailure{Path: p, Err: err}
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return keys, &job.UploadFailure{Path: p, Err: err}
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		if err := u.put(ctx, bucket, key, p); err != nil {
			logger.Error().Err(err).
				Str(log.FieldEvent, "upload.object_failed").
				Str(log.FieldBucket, bucket).
				Str(log.FieldKey, key).
				Msg("object write failed")
			return keys, &job.UploadFailure{Path: p, Err: err}
		}
		keys = append(keys, key)
	}

	logger.Info().
		Str(log.FieldEvent, "upload.done").
		Str(log.FieldBucket, bucket).
		Str(log.FieldPrefix, prefix).
		Int("objects", len(keys)).
		Msg("output uploaded")

	if u.opts.Prune {
		u.prune(ctx, bucket, prefix, keys)
	}
	return keys, nil
}

func (u *Uploader) put(ctx context.Context, bucket, key, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	ct := ContentTypeFor(p)
	if err := u.store.Put(ctx, bucket, key, f, objectstore.PutOptions{
		ContentType:          ct,
		Size:                 info.Size(),
		ServerSideEncryption: u.opts.ServerSideEncryption,
		ACL:                  u.opts.ACL,
	}); err != nil {
		return err
	}
	metrics.RecordUpload(ct, info.Size())
	return nil
}

// prune removes stale objects left under prefix by an earlier run of the
// same job. Failures are logged only; the fresh package is already complete.
func (u *Uploader) prune(ctx context.Context, bucket, prefix string, written []string) {
	lister, ok := u.store.(objectstore.Lister)
	if !ok || prefix == "" {
		return
	}
	logger := log.WithComponentFromContext(ctx, "upload")
	existing, err := lister.List(ctx, bucket, prefix+"/")
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "upload.prune_list_failed").Str(log.FieldPrefix, prefix).Msg("cannot list job prefix")
		return
	}
	keep := make(map[string]struct{}, len(written))
	for _, k := range written {
		keep[k] = struct{}{}
	}
	sort.Strings(existing)
	for _, k := range existing {
		if _, ok := keep[k]; ok {
			continue
		}
		if err := lister.Delete(ctx, bucket, k); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "upload.prune_failed").Str(log.FieldKey, k).Msg("cannot delete stale object")
			continue
		}
		metrics.PrunedObjectsTotal.Inc()
		logger.Debug().Str(log.FieldEvent, "upload.pruned").Str(log.FieldKey, k).Msg("stale object removed")
	}
}
