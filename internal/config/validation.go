// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/vodladder/internal/validate"
)

// maxSQSWait is the SQS long-poll ceiling.
const maxSQSWait = 20 * time.Second

// Validate checks cfg and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}

	validateQueue(v, cfg)
	validateDispatch(v, cfg.Dispatch)
	validateStorage(v, cfg.Storage)
	validateStatus(v, cfg.Status)

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.NotEmpty("ffmpeg.ffprobe_bin", cfg.FFmpeg.FFprobeBin)
	v.PositiveDuration("ffmpeg.timeout", cfg.FFmpeg.Timeout)
	v.PositiveDuration("ffmpeg.probe_timeout", cfg.FFmpeg.ProbeTimeout)
	v.Positive("ffmpeg.concurrency", cfg.FFmpeg.Concurrency)
	v.Positive("ffmpeg.segment_seconds", cfg.FFmpeg.SegmentSeconds)

	v.NotEmpty("worker.work_root", cfg.Worker.WorkRoot)
	v.PositiveDuration("worker.timeout", cfg.Worker.Timeout)

	v.PositiveDuration("poller.idle_sleep", cfg.Poller.IdleSleep)
	v.PositiveDuration("poller.error_backoff", cfg.Poller.ErrorBackoff)

	if cfg.API.Listen != "" {
		v.ListenAddr("api.listen", cfg.API.Listen)
	}
	v.NonNegative("api.rate_limit", cfg.API.RateLimit)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.sampling_rate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}

func validateQueue(v *validate.Validator, cfg AppConfig) {
	q := cfg.Queue
	v.OneOf("queue.backend", q.Backend, []string{QueueSQS, QueueRedis, QueueMemory})
	v.NonNegative("queue.redelivery_warn_after", q.RedeliveryWarnAfter)

	switch q.Backend {
	case QueueSQS:
		v.URL("queue.sqs.url", q.SQS.URL, []string{"http", "https"})
		v.MaxDuration("queue.sqs.wait", q.SQS.Wait, maxSQSWait)
		if q.SQS.Wait < 0 {
			v.AddError("queue.sqs.wait", "cannot be negative", q.SQS.Wait)
		}
	case QueueRedis:
		v.NotEmpty("redis.addr", cfg.Redis.Addr)
		v.NotEmpty("queue.redis.stream", q.Redis.Stream)
		v.NotEmpty("queue.redis.group", q.Redis.Group)
		v.NotEmpty("queue.redis.consumer", q.Redis.Consumer)
		v.PositiveDuration("queue.redis.visibility_timeout", q.Redis.VisibilityTimeout)
	}
}

func validateDispatch(v *validate.Validator, d DispatchConfig) {
	v.OneOf("dispatch.strategy", d.Strategy, []string{DispatchLocal, DispatchECS, DispatchInline})

	switch d.Strategy {
	case DispatchLocal:
		v.PositiveDuration("dispatch.local.timeout", d.Local.Timeout)
	case DispatchECS:
		v.NotEmpty("dispatch.ecs.cluster", d.ECS.Cluster)
		v.NotEmpty("dispatch.ecs.task_definition", d.ECS.TaskDefinition)
		v.NotEmpty("dispatch.ecs.container", d.ECS.Container)
		v.OneOf("dispatch.ecs.launch_type", d.ECS.LaunchType, []string{"FARGATE", "EC2"})
		if d.ECS.LaunchType == "FARGATE" && len(d.ECS.Subnets) == 0 {
			v.AddError("dispatch.ecs.subnets", "FARGATE tasks need at least one subnet", d.ECS.Subnets)
		}
	}

	v.NonNegative("dispatch.breaker.threshold", d.Breaker.Threshold)
	if d.Breaker.Threshold > 0 {
		v.PositiveDuration("dispatch.breaker.reset_timeout", d.Breaker.ResetTimeout)
	}
	if d.RatePerSecond < 0 {
		v.AddError("dispatch.rate_per_second", "cannot be negative", d.RatePerSecond)
	}
	if d.RatePerSecond > 0 {
		v.Positive("dispatch.rate_burst", d.RateBurst)
	}
}

func validateStorage(v *validate.Validator, s StorageConfig) {
	v.OneOf("storage.backend", s.Backend, []string{StorageS3, StorageMinio, StorageLocal})

	switch s.Backend {
	case StorageS3:
		if s.S3.Endpoint != "" {
			v.URL("storage.s3.endpoint", s.S3.Endpoint, []string{"http", "https"})
		}
		if s.S3.ServerSideEncryption != "" {
			v.OneOf("storage.s3.sse", s.S3.ServerSideEncryption, []string{"AES256", "aws:kms", "aws:kms:dsse"})
		}
	case StorageMinio:
		v.NotEmpty("storage.minio.endpoint", s.Minio.Endpoint)
	case StorageLocal:
		v.NotEmpty("storage.local.root", s.Local.Root)
	}
}

func validateStatus(v *validate.Validator, s StatusConfig) {
	v.OneOf("status.backend", s.Backend,
		[]string{StatusDynamo, StatusRedis, StatusSQLite, StatusBadger, StatusPostgres, StatusMemory})
	v.PositiveDuration("status.write_timeout", s.WriteTimeout)

	switch s.Backend {
	case StatusDynamo:
		v.NotEmpty("status.dynamo.table", s.Dynamo.Table)
	case StatusSQLite:
		v.NotEmpty("status.sqlite.path", s.SQLite.Path)
		v.Positive("status.sqlite.max_open_conns", s.SQLite.MaxOpenConns)
	case StatusPostgres:
		v.NotEmpty("status.postgres.dsn", s.Postgres.DSN)
		v.Custom("status.postgres.max_conns", s.Postgres.MaxConns, func(any) error {
			if s.Postgres.MaxConns <= 0 || s.Postgres.MaxConns > 1<<16 {
				return fmt.Errorf("must be between 1 and %d", 1<<16)
			}
			return nil
		})
	}
}
