// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package query

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache's Prometheus collectors, labelled by resource
// (the first key element). A nil *Metrics records nothing.
type Metrics struct {
	fetches   *prometheus.CounterVec
	coalesced *prometheus.CounterVec
	hits      *prometheus.CounterVec
	discarded *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewMetrics creates the cache collectors and registers them on
// registerer when it is non-nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pony",
				Subsystem: "query",
				Name:      name,
				Help:      help,
			},
			[]string{"resource"},
		)
	}
	metrics := &Metrics{
		fetches:   counter("fetches_total", "Fetches started"),
		coalesced: counter("coalesced_total", "Subscriptions that joined an in-flight fetch"),
		hits:      counter("hits_total", "Subscriptions served from fresh data"),
		discarded: counter("discarded_total", "Fetch completions dropped because they were superseded or orphaned"),
		evictions: counter("evictions_total", "Entries evicted"),
	}
	if registerer != nil {
		registerer.MustRegister(metrics.fetches, metrics.coalesced, metrics.hits, metrics.discarded, metrics.evictions)
	}
	return metrics
}

func (m *Metrics) record(pick func(*Metrics) *prometheus.CounterVec, key Key) {
	if m == nil {
		return
	}
	pick(m).WithLabelValues(key.Resource()).Inc()
}

func (m *Metrics) fetchStarted(key Key) { m.record(func(m *Metrics) *prometheus.CounterVec { return m.fetches }, key) }
func (m *Metrics) coalesce(key Key)     { m.record(func(m *Metrics) *prometheus.CounterVec { return m.coalesced }, key) }
func (m *Metrics) hit(key Key)          { m.record(func(m *Metrics) *prometheus.CounterVec { return m.hits }, key) }
func (m *Metrics) discard(key Key)      { m.record(func(m *Metrics) *prometheus.CounterVec { return m.discarded }, key) }
func (m *Metrics) evict(key Key)        { m.record(func(m *Metrics) *prometheus.CounterVec { return m.evictions }, key) }
