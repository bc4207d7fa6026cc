// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ManuGH/vodladder/internal/api"
	"github.com/ManuGH/vodladder/internal/config"
	"github.com/ManuGH/vodladder/internal/dispatch"
	"github.com/ManuGH/vodladder/internal/health"
	xglog "github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/poller"
	"github.com/ManuGH/vodladder/internal/queue"
	"github.com/ManuGH/vodladder/internal/resilience"
)

// memoryVisibility is the redelivery delay of the in-process queue.
const memoryVisibility = 15 * time.Minute

// PollerOptions tune the poller role.
type PollerOptions struct {
	// ConfigPath is forwarded to locally spawned workers.
	ConfigPath string
}

// PollerStack is everything the poll command runs.
type PollerStack struct {
	Queue      queue.Queue
	Dispatcher dispatch.Dispatcher
	Poller     *poller.Poller
	Health     *health.Manager
	// Server is nil when api.listen is empty.
	Server *http.Server
}

// BuildPoller wires queue, dispatcher, poller and the ops server on top of
// the container. The queue is closed with the container.
func (c *Container) BuildPoller(ctx context.Context, o PollerOptions) (*PollerStack, error) {
	q, err := c.buildQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	c.onClose("queue", func(context.Context) error { return q.Close() })

	d, err := c.buildDispatcher(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	p := poller.New(q, d, c.Recorder, poller.Config{
		IdleSleep:           c.Config.Poller.IdleSleep,
		ErrorBackoff:        c.Config.Poller.ErrorBackoff,
		RedeliveryWarnAfter: c.Config.Queue.RedeliveryWarnAfter,
	})

	hm := health.NewManager(c.Config.Version)
	hm.RegisterChecker(health.NewPingChecker("queue", q.Ping))
	hm.RegisterChecker(health.NewPingChecker("status", c.Statuses.Ping).Optional())
	hm.RegisterChecker(health.NewLoopChecker("poller", p.LastPoll, c.loopMaxAge(), time.Minute))

	stack := &PollerStack{Queue: q, Dispatcher: d, Poller: p, Health: hm}
	if c.Config.API.Listen != "" {
		tracing := ""
		if c.Config.Telemetry.Enabled {
			tracing = c.Config.Log.Service
		}
		srv := api.New(api.Config{
			RateLimit:      c.Config.API.RateLimit,
			TracingService: tracing,
		}, c.Statuses, hm)
		stack.Server = api.NewHTTPServer(c.Config.API.Listen, srv.Handler())
	}
	return stack, nil
}

// loopMaxAge is how long the poller may go without polling: a synchronous
// dispatch holds the loop for a whole job.
func (c *Container) loopMaxAge() time.Duration {
	base := c.Config.Poller.IdleSleep + c.Config.Poller.ErrorBackoff + time.Minute
	switch c.Config.Dispatch.Strategy {
	case config.DispatchLocal:
		return base + c.Config.Dispatch.Local.Timeout
	case config.DispatchInline:
		return base + c.Config.Worker.Timeout
	}
	return base
}

func (c *Container) buildQueue(ctx context.Context) (queue.Queue, error) {
	q := c.Config.Queue
	switch q.Backend {
	case config.QueueSQS:
		awsCfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		return queue.NewSQS(sqs.NewFromConfig(awsCfg), queue.SQSOptions{
			URL:               q.SQS.URL,
			Wait:              q.SQS.Wait,
			VisibilityTimeout: q.SQS.VisibilityTimeout,
		})
	case config.QueueRedis:
		client, err := c.redis(ctx)
		if err != nil {
			return nil, err
		}
		rs, err := queue.NewRedisStream(ctx, client, queue.RedisStreamOptions{
			Stream:            q.Redis.Stream,
			Group:             q.Redis.Group,
			Consumer:          q.Redis.Consumer,
			Wait:              q.Redis.Wait,
			VisibilityTimeout: q.Redis.VisibilityTimeout,
		})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return rs, nil
	case config.QueueMemory:
		visibility := q.SQS.VisibilityTimeout
		if visibility <= 0 {
			visibility = memoryVisibility
		}
		return queue.NewMemory(q.SQS.Wait, visibility), nil
	}
	return nil, fmt.Errorf("%w: queue %q", ErrUnknownBackend, q.Backend)
}

func (c *Container) buildDispatcher(ctx context.Context, o PollerOptions) (dispatch.Dispatcher, error) {
	dc := c.Config.Dispatch
	var (
		d   dispatch.Dispatcher
		err error
	)
	switch dc.Strategy {
	case config.DispatchLocal:
		command := dc.Local.Command
		if len(command) == 0 {
			exe, err := executable()
			if err != nil {
				return nil, err
			}
			command = []string{exe, "work"}
			if o.ConfigPath != "" {
				command = append(command, "--config", o.ConfigPath)
			}
		}
		d, err = dispatch.NewLocal(dispatch.LocalOptions{
			Command:    command,
			JobFileDir: dc.Local.JobFileDir,
			Timeout:    dc.Local.Timeout,
			Grace:      c.Config.FFmpeg.KillGrace,
		})
	case config.DispatchECS:
		awsCfg, aerr := c.aws(ctx)
		if aerr != nil {
			return nil, aerr
		}
		d, err = dispatch.NewECS(ecs.NewFromConfig(awsCfg), dispatch.ECSOptions{
			Cluster:        dc.ECS.Cluster,
			TaskDefinition: dc.ECS.TaskDefinition,
			Container:      dc.ECS.Container,
			LaunchType:     dc.ECS.LaunchType,
			Subnets:        dc.ECS.Subnets,
			SecurityGroups: dc.ECS.SecurityGroups,
			AssignPublicIP: dc.ECS.AssignPublicIP,
		})
	case config.DispatchInline:
		d = dispatch.NewInline(c.Worker)
	default:
		return nil, fmt.Errorf("%w: dispatch %q", ErrUnknownBackend, dc.Strategy)
	}
	if err != nil {
		return nil, err
	}

	if dc.Breaker.Threshold > 0 {
		d = dispatch.NewProtected(d, resilience.NewCircuitBreaker(
			"dispatch-"+d.Name(), dc.Breaker.Threshold, dc.Breaker.ResetTimeout))
	}
	if dc.RatePerSecond > 0 {
		d = dispatch.NewRateLimited(d, dc.RatePerSecond, dc.RateBurst)
	}

	c.Logger.Info().
		Str(xglog.FieldEvent, "bootstrap.dispatcher").
		Str(xglog.FieldDispatch, d.Name()).
		Int("breaker_threshold", dc.Breaker.Threshold).
		Float64("rate_per_second", dc.RatePerSecond).
		Msg("dispatcher wired")
	return d, nil
}
