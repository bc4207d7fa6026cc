// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	cfg := Defaults()
	cfg.Queue.SQS.URL = "https://sqs.eu-central-1.amazonaws.com/123456789012/uploads"
	cfg.Status.Dynamo.Table = "videos"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))

	err := Validate(Defaults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.sqs.url")
	assert.Contains(t, err.Error(), "status.dynamo.table")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"log level", func(c *AppConfig) { c.Log.Level = "loud" }, "log.level"},
		{"sqs wait ceiling", func(c *AppConfig) { c.Queue.SQS.Wait = 30 * time.Second }, "queue.sqs.wait"},
		{"unknown strategy", func(c *AppConfig) { c.Dispatch.Strategy = "k8s" }, "dispatch.strategy"},
		{"ecs without cluster", func(c *AppConfig) {
			c.Dispatch.Strategy = DispatchECS
			c.Dispatch.ECS.TaskDefinition = "worker"
			c.Dispatch.ECS.Container = "worker"
			c.Dispatch.ECS.Subnets = []string{"subnet-a"}
		}, "dispatch.ecs.cluster"},
		{"fargate without subnets", func(c *AppConfig) {
			c.Dispatch.Strategy = DispatchECS
			c.Dispatch.ECS.Cluster = "c"
			c.Dispatch.ECS.TaskDefinition = "worker"
			c.Dispatch.ECS.Container = "worker"
		}, "dispatch.ecs.subnets"},
		{"rate without burst", func(c *AppConfig) { c.Dispatch.RatePerSecond = 2 }, "dispatch.rate_burst"},
		{"minio without endpoint", func(c *AppConfig) { c.Storage.Backend = StorageMinio }, "storage.minio.endpoint"},
		{"bad sse", func(c *AppConfig) { c.Storage.S3.ServerSideEncryption = "rot13" }, "storage.s3.sse"},
		{"unknown status backend", func(c *AppConfig) { c.Status.Backend = "mongo" }, "status.backend"},
		{"postgres without dsn", func(c *AppConfig) { c.Status.Backend = StatusPostgres }, "status.postgres.dsn"},
		{"zero encoder timeout", func(c *AppConfig) { c.FFmpeg.Timeout = 0 }, "ffmpeg.timeout"},
		{"zero concurrency", func(c *AppConfig) { c.FFmpeg.Concurrency = 0 }, "ffmpeg.concurrency"},
		{"zero worker timeout", func(c *AppConfig) { c.Worker.Timeout = 0 }, "worker.timeout"},
		{"bad listen", func(c *AppConfig) { c.API.Listen = "8080" }, "api.listen"},
		{"bad exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_RedisQueueSkipsSQS(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Backend = QueueRedis
	cfg.Queue.SQS.URL = ""
	require.NoError(t, Validate(cfg))

	cfg.Queue.Redis.Group = ""
	assert.ErrorContains(t, Validate(cfg), "queue.redis.group")
}

func TestValidate_APIDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.API.Listen = ""
	assert.NoError(t, Validate(cfg))
}
