// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vodladder_breaker_state",
		Help: "Current breaker state; exactly one state per breaker is 1.",
	}, []string{"breaker", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_breaker_trips_total",
		Help: "Transitions to open, by breaker and cause.",
	}, []string{"breaker", "reason"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodladder_breaker_rejections_total",
		Help: "Calls refused while a breaker was open.",
	}, []string{"breaker"})
)

// breakerStates mirrors resilience.State values.
var breakerStates = [...]string{"closed", "half-open", "open"}

// SetBreakerState marks state as the only active state of breaker.
func SetBreakerState(breaker, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(breaker, s).Set(v)
	}
}

// IncBreakerTrip records breaker opening.
func IncBreakerTrip(breaker, reason string) {
	breakerTrips.WithLabelValues(breaker, reason).Inc()
}

// IncBreakerRejection records a call short-circuited by an open breaker.
func IncBreakerRejection(breaker string) {
	breakerRejections.WithLabelValues(breaker).Inc()
}
