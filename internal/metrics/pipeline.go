// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the transcoding pipeline.
// Labels never carry job IDs or object keys.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal counts poller iterations by outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_notifications_total",
		Help: "Queue notifications handled by the poller, by outcome.",
	}, []string{"outcome"})

	// QueueReceiveTotal counts receive calls by result (message, empty, error).
	QueueReceiveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_queue_receive_total",
		Help: "Queue receive calls, by result.",
	}, []string{"result"})

	// RedeliveriesTotal counts notifications seen beyond the warn threshold.
	RedeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodladder_queue_redelivery_warn_total",
		Help: "Notifications received more often than the configured warn threshold.",
	})

	// DispatchTotal counts worker launches by strategy and result.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_dispatch_total",
		Help: "Worker dispatch attempts, by strategy and result.",
	}, []string{"strategy", "result"})

	// JobsTotal counts finished worker runs by result and failing stage.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_jobs_total",
		Help: "Finished worker runs, by result and failed stage (empty on success).",
	}, []string{"result", "stage"})

	// StageDuration observes time spent per worker stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vodladder_stage_duration_seconds",
		Help:    "Worker stage durations.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"stage"})

	// RenditionsTotal counts encoder runs by resolution, codec and result.
	RenditionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_renditions_total",
		Help: "Rendition encodes, by resolution, codec decision and result.",
	}, []string{"resolution", "codec", "result"})

	// EmptyLaddersTotal counts jobs whose source produced no renditions.
	EmptyLaddersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodladder_empty_ladders_total",
		Help: "Jobs finalized without renditions because the ladder was empty.",
	})

	// UploadedObjectsTotal counts uploaded objects by content type.
	UploadedObjectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_uploaded_objects_total",
		Help: "Objects written to the object store, by content type.",
	}, []string{"content_type"})

	// UploadedBytesTotal counts uploaded bytes.
	UploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodladder_uploaded_bytes_total",
		Help: "Bytes written to the object store.",
	})

	// PrunedObjectsTotal counts stale remote objects removed after an upload.
	PrunedObjectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodladder_pruned_objects_total",
		Help: "Stale objects removed from a job prefix after upload.",
	})

	// StatusWritesTotal counts status store writes by operation and result.
	StatusWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_status_writes_total",
		Help: "Status store writes, by operation and result.",
	}, []string{"op", "result"})

	// CleanupFailuresTotal counts working directories that could not be removed.
	CleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodladder_cleanup_failures_total",
		Help: "Working directory removals that failed.",
	})

	procSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_proc_signal_total",
		Help: "Signals sent to external tool process groups, by signal and result.",
	}, []string{"signal", "result"})
)

// IncNotification records one poller outcome.
func IncNotification(outcome string) {
	NotificationsTotal.WithLabelValues(outcome).Inc()
}

// IncDispatch records one dispatch attempt.
func IncDispatch(strategy, result string) {
	DispatchTotal.WithLabelValues(strategy, result).Inc()
}

// IncJob records a finished worker run. stage is empty on success.
func IncJob(result, stage string) {
	JobsTotal.WithLabelValues(result, stage).Inc()
}

// ObserveStage records the duration of a worker stage.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncRendition records one encoder run.
func IncRendition(resolution, codec, result string) {
	RenditionsTotal.WithLabelValues(resolution, codec, result).Inc()
}

// RecordUpload records one uploaded object.
func RecordUpload(contentType string, size int64) {
	UploadedObjectsTotal.WithLabelValues(contentType).Inc()
	if size > 0 {
		UploadedBytesTotal.Add(float64(size))
	}
}

// IncStatusWrite records a status store write.
func IncStatusWrite(op, result string) {
	StatusWritesTotal.WithLabelValues(op, result).Inc()
}

// IncProcSignal records a signal sent to an external tool.
func IncProcSignal(signal, result string) {
	procSignals.WithLabelValues(signal, result).Inc()
}
