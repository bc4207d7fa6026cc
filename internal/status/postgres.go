// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vodladder_jobs (
	job_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT '',
	bucket     TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL DEFAULT '',
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Postgres stores records in a shared Postgres table so several pollers and
// the ops API see the same state.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the jobs table exists.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres status dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres status config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres status pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("status: apply postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SetStatus(ctx context.Context, t Transition) error {
	if err := validTransition(t); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO vodladder_jobs (job_id, status, bucket, object_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (job_id) DO UPDATE SET
	status     = EXCLUDED.status,
	bucket     = COALESCE(NULLIF(EXCLUDED.bucket, ''), vodladder_jobs.bucket),
	object_key = COALESCE(NULLIF(EXCLUDED.object_key, ''), vodladder_jobs.object_key),
	updated_at = EXCLUDED.updated_at
`, t.JobID, string(t.Status), t.Bucket, t.Key, t.At.UTC())
	return err
}

func (p *Postgres) PutMetadata(ctx context.Context, jobID string, md job.MediaMetadata, at time.Time) error {
	if err := job.ValidateID(jobID); err != nil {
		return err
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO vodladder_jobs (job_id, metadata, created_at, updated_at)
VALUES ($1, $2::jsonb, $3, $3)
ON CONFLICT (job_id) DO UPDATE SET
	metadata   = EXCLUDED.metadata,
	updated_at = EXCLUDED.updated_at
`, jobID, string(raw), at.UTC())
	return err
}

func (p *Postgres) Get(ctx context.Context, jobID string) (job.Record, error) {
	var (
		rec  job.Record
		st   string
		meta []byte
	)
	err := p.pool.QueryRow(ctx, `
SELECT job_id, status, bucket, object_key, metadata, created_at, updated_at
FROM vodladder_jobs
WHERE job_id = $1
`, jobID).Scan(&rec.JobID, &st, &rec.Bucket, &rec.Key, &meta, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return job.Record{}, ErrNotFound
	}
	if err != nil {
		return job.Record{}, err
	}
	rec.Status = job.Status(st)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if len(meta) > 0 {
		var md job.MediaMetadata
		if err := json.Unmarshal(meta, &md); err != nil {
			return job.Record{}, fmt.Errorf("status: decode metadata: %w", err)
		}
		rec.Metadata = &md
	}
	return rec, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
