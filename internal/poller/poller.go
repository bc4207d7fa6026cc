// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package poller drains the notification queue one message at a time and
// hands each job to a dispatcher. A notification is deleted only after its
// job finished done, or was launched remotely, or when it carries no job.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/vodladder/internal/dispatch"
	"github.com/ManuGH/vodladder/internal/intake"
	"github.com/ManuGH/vodladder/internal/job"
	"github.com/ManuGH/vodladder/internal/log"
	"github.com/ManuGH/vodladder/internal/metrics"
	"github.com/ManuGH/vodladder/internal/queue"
	"github.com/ManuGH/vodladder/internal/status"
)

// Outcome labels one loop iteration.
type Outcome string

const (
	OutcomeEmpty          Outcome = "empty"
	OutcomeReceiveError   Outcome = "receive_error"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeNoRecord       Outcome = "no_record"
	OutcomeBadKey         Outcome = "bad_key"
	OutcomeTestEvent      Outcome = "test_event"
	OutcomeDispatched     Outcome = "dispatched"
	OutcomeDispatchFailed Outcome = "dispatch_failed"
	OutcomeJobFailed      Outcome = "job_failed"
	OutcomeDeleteFailed   Outcome = "delete_failed"
	OutcomePanic          Outcome = "panic"
)

// Defaults for Config.
const (
	DefaultIdleSleep    = 2 * time.Second
	DefaultErrorBackoff = 5 * time.Second
)

// Config tunes loop pacing.
type Config struct {
	IdleSleep    time.Duration
	ErrorBackoff time.Duration
	// RedeliveryWarnAfter flags notifications received more often than
	// this. Zero disables the check.
	RedeliveryWarnAfter int
}

// Poller is the single sequential receive/dispatch/delete loop.
type Poller struct {
	q      queue.Queue
	d      dispatch.Dispatcher
	status *status.Recorder
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) bool

	lastPoll atomic.Int64 // unix nanos of the last answered Receive
}

func New(q queue.Queue, d dispatch.Dispatcher, recorder *status.Recorder, cfg Config) *Poller {
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = DefaultIdleSleep
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	return &Poller{q: q, d: d, status: recorder, cfg: cfg, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// LastPoll reports when the queue last answered a receive, empty or not.
// It is zero before the first successful receive.
func (p *Poller) LastPoll() time.Time {
	n := p.lastPoll.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Run loops until ctx is cancelled. It only returns nil.
func (p *Poller) Run(ctx context.Context) error {
	logger := log.WithComponent("poller")
	logger.Info().
		Str(log.FieldEvent, "poller.start").
		Str(log.FieldDispatch, p.d.Name()).
		Msg("poller started")
	defer logger.Info().Str(log.FieldEvent, "poller.stop").Msg("poller stopped")

	for ctx.Err() == nil {
		outcome := p.Step(ctx)
		if ctx.Err() != nil {
			break
		}
		if wait := p.pause(outcome); wait > 0 {
			if !p.sleep(ctx, wait) {
				break
			}
		}
	}
	return nil
}

func (p *Poller) pause(o Outcome) time.Duration {
	switch o {
	case OutcomeEmpty:
		return p.cfg.IdleSleep
	case OutcomeReceiveError, OutcomeDispatchFailed, OutcomePanic:
		return p.cfg.ErrorBackoff
	}
	return 0
}

// Step runs one iteration. Panics are contained here so one bad message
// cannot stop the loop.
func (p *Poller) Step(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanic
			logger := log.WithComponent("poller")
			logger.Error().
				Str(log.FieldEvent, "poller.panic").
				Str("panic", fmt.Sprint(r)).
				Msg("iteration panicked")
		}
		metrics.IncNotification(string(outcome))
	}()
	return p.step(ctx)
}

func (p *Poller) step(ctx context.Context) Outcome {
	logger := log.WithComponent("poller")

	msg, err := p.q.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeEmpty
		}
		metrics.QueueReceiveTotal.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Str(log.FieldEvent, "poller.receive_failed").Msg("queue receive failed")
		return OutcomeReceiveError
	}
	p.lastPoll.Store(time.Now().UnixNano())
	if msg == nil {
		metrics.QueueReceiveTotal.WithLabelValues("empty").Inc()
		logger.Debug().Str(log.FieldEvent, "poller.idle").Msg("no messages")
		return OutcomeEmpty
	}
	metrics.QueueReceiveTotal.WithLabelValues("message").Inc()

	logger = logger.With().Str(log.FieldMessageID, msg.ID).Logger()
	if p.cfg.RedeliveryWarnAfter > 0 && msg.ReceiveCount > p.cfg.RedeliveryWarnAfter {
		metrics.RedeliveriesTotal.Inc()
		logger.Warn().
			Str(log.FieldEvent, "poller.redelivered").
			Int("receive_count", msg.ReceiveCount).
			Msg("notification keeps coming back")
	}

	parsed, err := intake.Parse(msg.Body)
	if err != nil {
		outcome := classify(err)
		logger.Error().Err(err).
			Str(log.FieldEvent, "poller.intake_failed").
			Str("outcome", string(outcome)).
			Msg("notification left for redelivery")
		return outcome
	}

	if parsed.TestEvent {
		if err := p.q.Delete(ctx, msg.Handle); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "poller.delete_failed").Msg("test event not deleted")
			return OutcomeDeleteFailed
		}
		logger.Info().Str(log.FieldEvent, "poller.test_event").Msg("test event discarded")
		return OutcomeTestEvent
	}

	d := parsed.Descriptor
	jobCtx := log.ContextWithJobID(ctx, d.JobID)
	logger = log.WithContext(jobCtx, logger)
	if parsed.Extra > 0 {
		logger.Warn().
			Str(log.FieldEvent, "poller.extra_records").
			Int("ignored", parsed.Extra).
			Msg("notification carries more than one record; only the first is processed")
	}

	_ = p.status.SetStatus(jobCtx, d, job.StatusProcessing)

	handle, err := p.d.Dispatch(jobCtx, dispatch.Request{
		Job:           d,
		MessageID:     msg.ID,
		ReceiptHandle: msg.Handle,
		Body:          msg.Body,
	})
	if errors.Is(err, dispatch.ErrJobFailed) {
		metrics.IncDispatch(p.d.Name(), "job_failed")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "poller.job_failed").
			Str(log.FieldDispatch, p.d.Name()).
			Msg("job failed; notification left for redelivery")
		return OutcomeJobFailed
	}
	if err != nil {
		metrics.IncDispatch(p.d.Name(), "error")
		logger.Error().Err(err).
			Str(log.FieldEvent, "poller.dispatch_failed").
			Str(log.FieldDispatch, p.d.Name()).
			Msg("dispatch failed; notification left for redelivery")
		return OutcomeDispatchFailed
	}
	metrics.IncDispatch(p.d.Name(), "ok")

	if err := p.q.Delete(ctx, msg.Handle); err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "poller.delete_failed").
			Str(log.FieldHandle, handle).
			Msg("dispatched but not deleted; the job will run again")
		return OutcomeDeleteFailed
	}
	logger.Info().
		Str(log.FieldEvent, "poller.dispatched").
		Str(log.FieldDispatch, p.d.Name()).
		Str(log.FieldHandle, handle).
		Str(log.FieldBucket, d.Bucket).
		Str(log.FieldKey, d.Key).
		Msg("job dispatched")
	return OutcomeDispatched
}

func classify(err error) Outcome {
	switch {
	case errors.Is(err, intake.ErrMalformedBody):
		return OutcomeMalformed
	case errors.Is(err, intake.ErrBadKey):
		return OutcomeBadKey
	}
	return OutcomeNoRecord
}
