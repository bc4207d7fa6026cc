// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/vodladder/internal/config"
	xglog "github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/objectstore"
	"github.com/ManuGH/vodladder/internal/persistence/sqlite"
	"github.com/ManuGH/vodladder/internal/platform/redisx"
	"github.com/ManuGH/vodladder/internal/status"
)

func (c *Container) buildObjectStore(ctx context.Context) (objectstore.Store, error) {
	s := c.Config.Storage
	switch s.Backend {
	case config.StorageS3:
		awsCfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3(awsCfg, objectstore.S3Options{
			Endpoint:  s.S3.Endpoint,
			PathStyle: s.S3.PathStyle,
		}), nil
	case config.StorageMinio:
		return objectstore.NewMinio(objectstore.MinioConfig{
			Endpoint:  s.Minio.Endpoint,
			AccessKey: s.Minio.AccessKey,
			SecretKey: s.Minio.SecretKey,
			UseSSL:    s.Minio.UseSSL,
			Region:    s.Minio.Region,
		})
	case config.StorageLocal:
		return objectstore.NewLocal(s.Local.Root)
	}
	return nil, fmt.Errorf("%w: storage %q", ErrUnknownBackend, s.Backend)
}

func (c *Container) buildStatusStore(ctx context.Context) (status.Store, error) {
	s := c.Config.Status
	switch s.Backend {
	case config.StatusDynamo:
		awsCfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		return status.NewDynamo(dynamodb.NewFromConfig(awsCfg), status.DynamoTables{
			Status:   s.Dynamo.Table,
			Metadata: s.Dynamo.MetadataTable,
		})
	case config.StatusRedis:
		client, err := c.redis(ctx)
		if err != nil {
			return nil, err
		}
		return status.NewRedis(client, s.Redis.Prefix), nil
	case config.StatusSQLite:
		return status.OpenSQLite(ctx, s.SQLite.Path, sqlite.Config{
			BusyTimeout:  s.SQLite.BusyTimeout,
			MaxOpenConns: s.SQLite.MaxOpenConns,
		})
	case config.StatusBadger:
		return status.OpenBadger(s.Badger.Path)
	case config.StatusPostgres:
		return status.OpenPostgres(ctx, s.Postgres.DSN, int32(s.Postgres.MaxConns)) // #nosec G115 -- bounded by config validation
	case config.StatusMemory:
		return status.NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: status %q", ErrUnknownBackend, s.Backend)
}

// redis dials a new client. Each consumer owns and closes its client.
func (c *Container) redis(ctx context.Context) (*redis.Client, error) {
	return redisx.Connect(ctx, redisx.Config{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}, xglog.WithComponent("redis"))
}

// OpenStatusStore opens only the configured status store, for read-only
// tools. The caller closes it.
func OpenStatusStore(ctx context.Context, cfg config.AppConfig) (status.Store, error) {
	c := &Container{Config: cfg, Logger: xglog.WithComponent("bootstrap")}
	return c.buildStatusStore(ctx)
}
