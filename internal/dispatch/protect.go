// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/ManuGH/vodladder/internal/resilience"
)

// Protected stops calling the inner dispatcher after repeated failures so a
// broken task runner does not drain the queue's retry budget.
type Protected struct {
	inner   Dispatcher
	breaker *resilience.CircuitBreaker
}

func NewProtected(inner Dispatcher, breaker *resilience.CircuitBreaker) *Protected {
	return &Protected{inner: inner, breaker: breaker}
}

func (p *Protected) Name() string { return p.inner.Name() }

// Dispatch calls the inner dispatcher through the breaker. A job that ran
// and failed says nothing about the runner, so it does not count against it.
func (p *Protected) Dispatch(ctx context.Context, req Request) (string, error) {
	var (
		handle    string
		jobFailed error
	)
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		handle, err = p.inner.Dispatch(ctx, req)
		if errors.Is(err, ErrJobFailed) {
			jobFailed = err
			return nil
		}
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", wrap(req.Job, err)
	}
	if jobFailed != nil {
		return handle, jobFailed
	}
	return handle, err
}

// RateLimited paces dispatches, for example to stay under the RunTask API
// quota.
type RateLimited struct {
	inner   Dispatcher
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond dispatches with the given burst.
func NewRateLimited(inner Dispatcher, perSecond float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) Dispatch(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", wrap(req.Job, err)
	}
	return r.inner.Dispatch(ctx, req)
}
