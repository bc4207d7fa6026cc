// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/vodladder/internal/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VODLADDER_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
	// DotEnvFiles are loaded before env parsing; missing files are skipped
	// and variables already set in the process win.
	DotEnvFiles     []string
	ConsumedEnvKeys map[string]struct{} // every key consulted, for diagnostics
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		DotEnvFiles:     []string{".env"},
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load is shorthand for NewLoader(path, version).Load().
func Load(path, version string) (AppConfig, error) {
	return NewLoader(path, version).Load()
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> dotenv -> file (strict) -> env -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if err := l.loadDotEnv(); err != nil {
		return cfg, err
	}

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Log: LogConfig{Level: "info", Service: "vodladder"},
		AWS: AWSConfig{MaxAttempts: 3, Timeout: 30 * time.Second},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Queue: QueueConfig{
			Backend: QueueSQS,
			SQS: SQSQueueConfig{
				Wait: 2 * time.Second,
			},
			Redis: RedisQueueConfig{
				Stream:            "vodladder:uploads",
				Group:             "vodladder",
				Consumer:          hostname(),
				Wait:              2 * time.Second,
				VisibilityTimeout: 15 * time.Minute,
			},
			RedeliveryWarnAfter: 5,
		},
		Dispatch: DispatchConfig{
			Strategy: DispatchLocal,
			Local: LocalDispatchConfig{
				Timeout: 2 * time.Hour,
			},
			ECS: ECSDispatchConfig{
				LaunchType: "FARGATE",
			},
			Breaker: BreakerConfig{
				Threshold:    5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Storage: StorageConfig{
			Backend:      StorageS3,
			OutputPrefix: "processed",
			Prune:        true,
			Local:        LocalStorageConfig{Root: "data/objects"},
		},
		Status: StatusConfig{
			Backend:      StatusDynamo,
			WriteTimeout: 5 * time.Second,
			Redis:        RedisStatusConfig{Prefix: "vodladder:"},
			SQLite: SQLiteStatusConfig{
				Path:         "data/status.db",
				BusyTimeout:  5 * time.Second,
				MaxOpenConns: 4,
			},
			Postgres: PostgresStatusConfig{MaxConns: 4},
		},
		FFmpeg: FFmpegConfig{
			Bin:            "ffmpeg",
			FFprobeBin:     "ffprobe",
			Timeout:        time.Hour,
			ProbeTimeout:   time.Minute,
			KillGrace:      5 * time.Second,
			Concurrency:    1,
			SegmentSeconds: 4,
		},
		Worker: WorkerConfig{
			WorkRoot: filepath.Join(os.TempDir(), "vodladder"),
			Timeout:  2 * time.Hour,
		},
		Poller: PollerConfig{
			IdleSleep:    2 * time.Second,
			ErrorBackoff: 5 * time.Second,
		},
		API: APIConfig{
			Listen:    ":8080",
			RateLimit: 120,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "vodladder"
}

func (l *Loader) loadDotEnv() error {
	logger := log.WithComponent("config")
	for _, path := range l.DotEnvFiles {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
		logger.Debug().Str("path", path).Msg("loaded dotenv file")
	}
	return nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

// Tracked env accessors. Keys are given without EnvPrefix; fallbacks are
// full names accepted for compatibility (LOG_LEVEL, SQS_QUEUE_URL, ...).

func (l *Loader) key(name string, fallbacks ...string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return k
	}
	for _, f := range fallbacks {
		l.ConsumedEnvKeys[f] = struct{}{}
		if v, ok := os.LookupEnv(f); ok && v != "" {
			return f
		}
	}
	return k
}

func (l *Loader) envString(name, def string, fallbacks ...string) string {
	return ParseString(l.key(name, fallbacks...), def)
}

func (l *Loader) envInt(name string, def int) int {
	return ParseInt(l.key(name), def)
}

func (l *Loader) envBool(name string, def bool) bool {
	return ParseBool(l.key(name), def)
}

func (l *Loader) envDuration(name string, def time.Duration) time.Duration {
	return ParseDuration(l.key(name), def)
}

func (l *Loader) envFloat(name string, def float64) float64 {
	return ParseFloat(l.key(name), def)
}

func (l *Loader) envList(name string, def []string) []string {
	return ParseList(l.key(name), def)
}

// mergeEnv applies environment overrides (highest priority).
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level, "LOG_LEVEL")
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	cfg.AWS.Region = l.envString("AWS_REGION", cfg.AWS.Region, "AWS_REGION")
	cfg.AWS.Profile = l.envString("AWS_PROFILE", cfg.AWS.Profile)
	cfg.AWS.MaxAttempts = l.envInt("AWS_MAX_ATTEMPTS", cfg.AWS.MaxAttempts)
	cfg.AWS.Timeout = l.envDuration("AWS_TIMEOUT", cfg.AWS.Timeout)

	cfg.Redis.Addr = l.envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Queue.Backend = l.envString("QUEUE_BACKEND", cfg.Queue.Backend)
	cfg.Queue.SQS.URL = l.envString("QUEUE_SQS_URL", cfg.Queue.SQS.URL, "SQS_QUEUE_URL")
	cfg.Queue.SQS.Wait = l.envDuration("QUEUE_SQS_WAIT", cfg.Queue.SQS.Wait)
	cfg.Queue.SQS.VisibilityTimeout = l.envDuration("QUEUE_SQS_VISIBILITY_TIMEOUT", cfg.Queue.SQS.VisibilityTimeout)
	cfg.Queue.Redis.Stream = l.envString("QUEUE_REDIS_STREAM", cfg.Queue.Redis.Stream)
	cfg.Queue.Redis.Group = l.envString("QUEUE_REDIS_GROUP", cfg.Queue.Redis.Group)
	cfg.Queue.Redis.Consumer = l.envString("QUEUE_REDIS_CONSUMER", cfg.Queue.Redis.Consumer)
	cfg.Queue.Redis.Wait = l.envDuration("QUEUE_REDIS_WAIT", cfg.Queue.Redis.Wait)
	cfg.Queue.Redis.VisibilityTimeout = l.envDuration("QUEUE_REDIS_VISIBILITY_TIMEOUT", cfg.Queue.Redis.VisibilityTimeout)
	cfg.Queue.RedeliveryWarnAfter = l.envInt("QUEUE_REDELIVERY_WARN_AFTER", cfg.Queue.RedeliveryWarnAfter)

	cfg.Dispatch.Strategy = l.envString("DISPATCH_STRATEGY", cfg.Dispatch.Strategy)
	cfg.Dispatch.Local.Command = l.envList("DISPATCH_LOCAL_COMMAND", cfg.Dispatch.Local.Command)
	cfg.Dispatch.Local.JobFileDir = l.envString("DISPATCH_LOCAL_JOB_FILE_DIR", cfg.Dispatch.Local.JobFileDir)
	cfg.Dispatch.Local.Timeout = l.envDuration("DISPATCH_LOCAL_TIMEOUT", cfg.Dispatch.Local.Timeout)
	cfg.Dispatch.ECS.Cluster = l.envString("DISPATCH_ECS_CLUSTER", cfg.Dispatch.ECS.Cluster)
	cfg.Dispatch.ECS.TaskDefinition = l.envString("DISPATCH_ECS_TASK_DEFINITION", cfg.Dispatch.ECS.TaskDefinition)
	cfg.Dispatch.ECS.Container = l.envString("DISPATCH_ECS_CONTAINER", cfg.Dispatch.ECS.Container)
	cfg.Dispatch.ECS.LaunchType = l.envString("DISPATCH_ECS_LAUNCH_TYPE", cfg.Dispatch.ECS.LaunchType)
	cfg.Dispatch.ECS.Subnets = l.envList("DISPATCH_ECS_SUBNETS", cfg.Dispatch.ECS.Subnets)
	cfg.Dispatch.ECS.SecurityGroups = l.envList("DISPATCH_ECS_SECURITY_GROUPS", cfg.Dispatch.ECS.SecurityGroups)
	cfg.Dispatch.ECS.AssignPublicIP = l.envBool("DISPATCH_ECS_ASSIGN_PUBLIC_IP", cfg.Dispatch.ECS.AssignPublicIP)
	cfg.Dispatch.Breaker.Threshold = l.envInt("DISPATCH_BREAKER_THRESHOLD", cfg.Dispatch.Breaker.Threshold)
	cfg.Dispatch.Breaker.ResetTimeout = l.envDuration("DISPATCH_BREAKER_RESET_TIMEOUT", cfg.Dispatch.Breaker.ResetTimeout)
	cfg.Dispatch.RatePerSecond = l.envFloat("DISPATCH_RATE_PER_SECOND", cfg.Dispatch.RatePerSecond)
	cfg.Dispatch.RateBurst = l.envInt("DISPATCH_RATE_BURST", cfg.Dispatch.RateBurst)

	cfg.Storage.Backend = l.envString("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.S3.Endpoint = l.envString("STORAGE_S3_ENDPOINT", cfg.Storage.S3.Endpoint)
	cfg.Storage.S3.PathStyle = l.envBool("STORAGE_S3_PATH_STYLE", cfg.Storage.S3.PathStyle)
	cfg.Storage.S3.ServerSideEncryption = l.envString("STORAGE_S3_SSE", cfg.Storage.S3.ServerSideEncryption)
	cfg.Storage.S3.ACL = l.envString("STORAGE_S3_ACL", cfg.Storage.S3.ACL)
	cfg.Storage.Minio.Endpoint = l.envString("STORAGE_MINIO_ENDPOINT", cfg.Storage.Minio.Endpoint)
	cfg.Storage.Minio.AccessKey = l.envString("STORAGE_MINIO_ACCESS_KEY", cfg.Storage.Minio.AccessKey)
	cfg.Storage.Minio.SecretKey = l.envString("STORAGE_MINIO_SECRET_KEY", cfg.Storage.Minio.SecretKey)
	cfg.Storage.Minio.UseSSL = l.envBool("STORAGE_MINIO_USE_SSL", cfg.Storage.Minio.UseSSL)
	cfg.Storage.Minio.Region = l.envString("STORAGE_MINIO_REGION", cfg.Storage.Minio.Region)
	cfg.Storage.Local.Root = l.envString("STORAGE_LOCAL_ROOT", cfg.Storage.Local.Root)
	cfg.Storage.OutputBucket = l.envString("STORAGE_OUTPUT_BUCKET", cfg.Storage.OutputBucket)
	cfg.Storage.OutputPrefix = l.envString("STORAGE_OUTPUT_PREFIX", cfg.Storage.OutputPrefix)
	cfg.Storage.Prune = l.envBool("STORAGE_PRUNE", cfg.Storage.Prune)

	cfg.Status.Backend = l.envString("STATUS_BACKEND", cfg.Status.Backend)
	cfg.Status.WriteTimeout = l.envDuration("STATUS_WRITE_TIMEOUT", cfg.Status.WriteTimeout)
	cfg.Status.Dynamo.Table = l.envString("STATUS_DYNAMO_TABLE", cfg.Status.Dynamo.Table, "DYNAMO_TABLE_NAME")
	cfg.Status.Dynamo.MetadataTable = l.envString("STATUS_DYNAMO_METADATA_TABLE", cfg.Status.Dynamo.MetadataTable, "DYNAMO_METADATA_TABLE")
	cfg.Status.Redis.Prefix = l.envString("STATUS_REDIS_PREFIX", cfg.Status.Redis.Prefix)
	cfg.Status.SQLite.Path = l.envString("STATUS_SQLITE_PATH", cfg.Status.SQLite.Path)
	cfg.Status.SQLite.BusyTimeout = l.envDuration("STATUS_SQLITE_BUSY_TIMEOUT", cfg.Status.SQLite.BusyTimeout)
	cfg.Status.SQLite.MaxOpenConns = l.envInt("STATUS_SQLITE_MAX_OPEN_CONNS", cfg.Status.SQLite.MaxOpenConns)
	cfg.Status.Badger.Path = l.envString("STATUS_BADGER_PATH", cfg.Status.Badger.Path)
	cfg.Status.Postgres.DSN = l.envString("STATUS_POSTGRES_DSN", cfg.Status.Postgres.DSN)
	cfg.Status.Postgres.MaxConns = l.envInt("STATUS_POSTGRES_MAX_CONNS", cfg.Status.Postgres.MaxConns)

	cfg.FFmpeg.Bin = l.envString("FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString("FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.Timeout = l.envDuration("FFMPEG_TIMEOUT", cfg.FFmpeg.Timeout)
	cfg.FFmpeg.ProbeTimeout = l.envDuration("FFMPEG_PROBE_TIMEOUT", cfg.FFmpeg.ProbeTimeout)
	cfg.FFmpeg.KillGrace = l.envDuration("FFMPEG_KILL_GRACE", cfg.FFmpeg.KillGrace)
	cfg.FFmpeg.Concurrency = l.envInt("FFMPEG_CONCURRENCY", cfg.FFmpeg.Concurrency)
	cfg.FFmpeg.SegmentSeconds = l.envInt("FFMPEG_SEGMENT_SECONDS", cfg.FFmpeg.SegmentSeconds)

	cfg.Worker.WorkRoot = l.envString("WORKER_WORK_ROOT", cfg.Worker.WorkRoot)
	cfg.Worker.Timeout = l.envDuration("WORKER_TIMEOUT", cfg.Worker.Timeout)

	cfg.Poller.IdleSleep = l.envDuration("POLLER_IDLE_SLEEP", cfg.Poller.IdleSleep)
	cfg.Poller.ErrorBackoff = l.envDuration("POLLER_ERROR_BACKOFF", cfg.Poller.ErrorBackoff)

	cfg.API.Listen = l.envString("API_LISTEN", cfg.API.Listen)
	cfg.API.RateLimit = l.envInt("API_RATE_LIMIT", cfg.API.RateLimit)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Insecure = l.envBool("TELEMETRY_INSECURE", cfg.Telemetry.Insecure)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
}
