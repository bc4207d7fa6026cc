// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/redis/go-redis/v9"
)

const (
	fieldStatus    = "status"
	fieldBucket    = "bucket"
	fieldKey       = "key"
	fieldMetadata  = "metadata"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// Redis keeps one hash per job under <prefix>job:<id>.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps client. Close closes it.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) hashKey(jobID string) string {
	return r.prefix + "job:" + jobID
}

func (r *Redis) SetStatus(ctx context.Context, t Transition) error {
	if err := validTransition(t); err != nil {
		return err
	}
	at := formatTime(t.At)
	fields := map[string]any{
		fieldStatus:    string(t.Status),
		fieldUpdatedAt: at,
	}
	if t.Bucket != "" {
		fields[fieldBucket] = t.Bucket
	}
	if t.Key != "" {
		fields[fieldKey] = t.Key
	}
	key := r.hashKey(t.JobID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, at)
		pipe.HSet(ctx, key, fields)
		return nil
	})
	return err
}

func (r *Redis) PutMetadata(ctx context.Context, jobID string, md job.MediaMetadata, at time.Time) error {
	if err := job.ValidateID(jobID); err != nil {
		return err
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	ts := formatTime(at)
	key := r.hashKey(jobID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, ts)
		pipe.HSet(ctx, key, fieldMetadata, string(raw), fieldUpdatedAt, ts)
		return nil
	})
	return err
}

func (r *Redis) Get(ctx context.Context, jobID string) (job.Record, error) {
	vals, err := r.client.HGetAll(ctx, r.hashKey(jobID)).Result()
	if err != nil {
		return job.Record{}, err
	}
	if len(vals) == 0 {
		return job.Record{}, ErrNotFound
	}
	rec := job.Record{
		JobID:  jobID,
		Status: job.Status(vals[fieldStatus]),
		Bucket: vals[fieldBucket],
		Key:    vals[fieldKey],
	}
	if rec.CreatedAt, err = parseTime(vals[fieldCreatedAt]); err != nil {
		return job.Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(vals[fieldUpdatedAt]); err != nil {
		return job.Record{}, err
	}
	if raw := vals[fieldMetadata]; raw != "" {
		var md job.MediaMetadata
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			return job.Record{}, fmt.Errorf("status: decode metadata: %w", err)
		}
		rec.Metadata = &md
	}
	return rec, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }
