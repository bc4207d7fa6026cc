// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package awscfg loads the shared AWS client configuration.
package awscfg

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// Options selects region and credentials source. Empty fields fall back to
// the SDK default chain (environment, shared config, instance role).
type Options struct {
	Region  string
	Profile string
	// MaxAttempts bounds SDK retries per call; zero keeps the SDK default.
	MaxAttempts int
	// Timeout bounds each HTTP round trip made by the SDK.
	Timeout time.Duration
	// Tracing adds OpenTelemetry middleware to every client.
	Tracing bool
}

// Load resolves an aws.Config.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.MaxAttempts > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(opts.MaxAttempts))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = newHTTPClient(opts.Timeout)
	}
	if opts.Tracing {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}
	return cfg, nil
}
