// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the vodladder configuration with precedence
// ENV > YAML file > defaults.
package config

import "time"

// Backend and strategy names accepted in configuration.
const (
	QueueSQS    = "sqs"
	QueueRedis  = "redis"
	QueueMemory = "memory"

	DispatchLocal  = "local"
	DispatchECS    = "ecs"
	DispatchInline = "inline"

	StorageS3    = "s3"
	StorageMinio = "minio"
	StorageLocal = "local"

	StatusDynamo   = "dynamo"
	StatusRedis    = "redis"
	StatusSQLite   = "sqlite"
	StatusBadger   = "badger"
	StatusPostgres = "postgres"
	StatusMemory   = "memory"
)

// AppConfig is the complete service configuration.
type AppConfig struct {
	Version   string          `yaml:"-"`
	Log       LogConfig       `yaml:"log"`
	AWS       AWSConfig       `yaml:"aws"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Storage   StorageConfig   `yaml:"storage"`
	Status    StatusConfig    `yaml:"status"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Worker    WorkerConfig    `yaml:"worker"`
	Poller    PollerConfig    `yaml:"poller"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// AWSConfig is shared by the SQS, S3, DynamoDB and ECS clients.
type AWSConfig struct {
	Region      string        `yaml:"region"`
	Profile     string        `yaml:"profile"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RedisConfig is the connection used by the redis queue and status backends.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Backend string           `yaml:"backend"`
	SQS     SQSQueueConfig   `yaml:"sqs"`
	Redis   RedisQueueConfig `yaml:"redis"`
	// RedeliveryWarnAfter flags notifications received more often than
	// this. Zero disables the check.
	RedeliveryWarnAfter int `yaml:"redelivery_warn_after"`
}

type SQSQueueConfig struct {
	URL               string        `yaml:"url"`
	Wait              time.Duration `yaml:"wait"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

type RedisQueueConfig struct {
	Stream            string        `yaml:"stream"`
	Group             string        `yaml:"group"`
	Consumer          string        `yaml:"consumer"`
	Wait              time.Duration `yaml:"wait"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

type DispatchConfig struct {
	Strategy string              `yaml:"strategy"`
	Local    LocalDispatchConfig `yaml:"local"`
	ECS      ECSDispatchConfig   `yaml:"ecs"`
	Breaker  BreakerConfig       `yaml:"breaker"`
	// RatePerSecond paces dispatches; zero disables pacing.
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

type LocalDispatchConfig struct {
	// Command is the worker argv; empty means "<this binary> work".
	Command    []string      `yaml:"command"`
	JobFileDir string        `yaml:"job_file_dir"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ECSDispatchConfig struct {
	Cluster        string   `yaml:"cluster"`
	TaskDefinition string   `yaml:"task_definition"`
	Container      string   `yaml:"container"`
	LaunchType     string   `yaml:"launch_type"`
	Subnets        []string `yaml:"subnets"`
	SecurityGroups []string `yaml:"security_groups"`
	AssignPublicIP bool     `yaml:"assign_public_ip"`
}

// BreakerConfig guards dispatch; a zero threshold disables the breaker.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

type StorageConfig struct {
	Backend string             `yaml:"backend"`
	S3      S3StorageConfig    `yaml:"s3"`
	Minio   MinioStorageConfig `yaml:"minio"`
	Local   LocalStorageConfig `yaml:"local"`
	// OutputBucket receives packages; empty means the source bucket.
	OutputBucket string `yaml:"output_bucket"`
	OutputPrefix string `yaml:"output_prefix"`
	// Prune deletes objects under the job prefix not written by this run.
	Prune bool `yaml:"prune"`
}

type S3StorageConfig struct {
	Endpoint             string `yaml:"endpoint"`
	PathStyle            bool   `yaml:"path_style"`
	ServerSideEncryption string `yaml:"sse"`
	ACL                  string `yaml:"acl"`
}

type MinioStorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
}

type LocalStorageConfig struct {
	Root string `yaml:"root"`
}

type StatusConfig struct {
	Backend      string               `yaml:"backend"`
	WriteTimeout time.Duration        `yaml:"write_timeout"`
	Dynamo       DynamoStatusConfig   `yaml:"dynamo"`
	Redis        RedisStatusConfig    `yaml:"redis"`
	SQLite       SQLiteStatusConfig   `yaml:"sqlite"`
	Badger       BadgerStatusConfig   `yaml:"badger"`
	Postgres     PostgresStatusConfig `yaml:"postgres"`
}

type DynamoStatusConfig struct {
	Table string `yaml:"table"`
	// MetadataTable is optional; without it metadata is stored on the status item.
	MetadataTable string `yaml:"metadata_table"`
}

type RedisStatusConfig struct {
	Prefix string `yaml:"prefix"`
}

type SQLiteStatusConfig struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// BadgerStatusConfig with an empty path runs in memory.
type BadgerStatusConfig struct {
	Path string `yaml:"path"`
}

type PostgresStatusConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

type FFmpegConfig struct {
	Bin        string `yaml:"bin"`
	FFprobeBin string `yaml:"ffprobe_bin"`
	// Timeout bounds one encoder run, ProbeTimeout one analyzer run.
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// KillGrace is the SIGTERM to SIGKILL window on cancellation.
	KillGrace      time.Duration `yaml:"kill_grace"`
	Concurrency    int           `yaml:"concurrency"`
	SegmentSeconds int           `yaml:"segment_seconds"`
}

type WorkerConfig struct {
	WorkRoot string        `yaml:"work_root"`
	Timeout  time.Duration `yaml:"timeout"`
}

type PollerConfig struct {
	IdleSleep    time.Duration `yaml:"idle_sleep"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
}

// APIConfig configures the ops/status HTTP server. An empty Listen disables it.
type APIConfig struct {
	Listen string `yaml:"listen"`
	// RateLimit is requests per minute per client IP; zero disables limiting.
	RateLimit int `yaml:"rate_limit"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}
