// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus metrics for the session store and the
// HTTP ingress.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionStoreOps counts round-trips to the session store by backend,
	// operation and result.
	SessionStoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icegate_session_store_ops_total",
		Help: "Total number of session store round-trips by backend, operation and result",
	}, []string{"backend", "op", "result"})

	// SessionStoreOpDuration tracks session store round-trip latency.
	SessionStoreOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "icegate_session_store_op_duration_seconds",
		Help:    "Session store round-trip latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"backend", "op"})

	// SessionsActive gauges the number of live sessions per backend, for
	// backends that can count them cheaply.
	SessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "icegate_sessions_active",
		Help: "Current number of live sessions",
	}, []string{"backend"})
)

// ObserveStoreOp records one session store round-trip.
func ObserveStoreOp(backend, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SessionStoreOps.WithLabelValues(backend, op, result).Inc()
	SessionStoreOpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
