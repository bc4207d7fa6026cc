// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/persistence/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT '',
	bucket     TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL DEFAULT '',
	metadata   TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

const sqliteUpsertStatus = `
INSERT INTO jobs (job_id, status, bucket, object_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
	status     = excluded.status,
	bucket     = CASE WHEN excluded.bucket = '' THEN jobs.bucket ELSE excluded.bucket END,
	object_key = CASE WHEN excluded.object_key = '' THEN jobs.object_key ELSE excluded.object_key END,
	updated_at = excluded.updated_at;`

const sqliteUpsertMetadata = `
INSERT INTO jobs (job_id, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
	metadata   = excluded.metadata,
	updated_at = excluded.updated_at;`

// SQLite stores records in a single table of an embedded database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, cfg sqlite.Config) (*SQLite, error) {
	db, err := sqlite.Open(ctx, path, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("status: apply sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) SetStatus(ctx context.Context, t Transition) error {
	if err := validTransition(t); err != nil {
		return err
	}
	at := formatTime(t.At)
	_, err := s.db.ExecContext(ctx, sqliteUpsertStatus, t.JobID, string(t.Status), t.Bucket, t.Key, at, at)
	return err
}

func (s *SQLite) PutMetadata(ctx context.Context, jobID string, md job.MediaMetadata, at time.Time) error {
	if err := job.ValidateID(jobID); err != nil {
		return err
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	ts := formatTime(at)
	_, err = s.db.ExecContext(ctx, sqliteUpsertMetadata, jobID, string(raw), ts, ts)
	return err
}

func (s *SQLite) Get(ctx context.Context, jobID string) (job.Record, error) {
	var (
		rec                  job.Record
		st                   string
		meta                 sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, status, bucket, object_key, metadata, created_at, updated_at FROM jobs WHERE job_id = ?`,
		jobID,
	).Scan(&rec.JobID, &st, &rec.Bucket, &rec.Key, &meta, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Record{}, ErrNotFound
	}
	if err != nil {
		return job.Record{}, err
	}
	rec.Status = job.Status(st)
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return job.Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return job.Record{}, err
	}
	if meta.Valid && meta.String != "" {
		var md job.MediaMetadata
		if err := json.Unmarshal([]byte(meta.String), &md); err != nil {
			return job.Record{}, fmt.Errorf("status: decode metadata: %w", err)
		}
		rec.Metadata = &md
	}
	return rec, nil
}

// Ping runs a quick integrity check so a damaged file fails readiness.
func (s *SQLite) Ping(ctx context.Context) error {
	issues, err := sqlite.VerifyIntegrity(ctx, s.db, sqlite.ModeQuick)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("status: sqlite integrity: %v", issues)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("status: bad timestamp %q: %w", s, err)
	}
	return t, nil
}
