// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics creates the gateway collectors and registers them on
// registerer when it is non-nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pony",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "API requests by method and outcome (ok, transport, auth, domain)",
			},
			[]string{"method", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pony",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "API request latency by method and outcome",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 13), // 5ms to ~20s
			},
			[]string{"method", "outcome"},
		),
	}
	if registerer != nil {
		registerer.MustRegister(metrics.requests, metrics.latency)
	}
	return metrics
}

func (m *Metrics) observe(method string, kind Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := kind.String()
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method, outcome).Observe(elapsed.Seconds())
}
