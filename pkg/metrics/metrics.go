// Package metrics holds the Prometheus collectors shared by the query layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "waveform"

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Query cache lookups answered from memory.",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Query cache lookups that went to the data source.",
	}, []string{"cache"})

	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Entries currently held by a query cache.",
	}, []string{"cache"})

	SourceQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "query_duration_seconds",
		Help:      "Latency of data source queries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})

	SourceQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "query_errors_total",
		Help:      "Failed data source queries.",
	}, []string{"query"})

	SamplesServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_served_total",
		Help:      "Samples returned to window requests after trimming.",
	})

	ValidationViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validation",
		Name:      "violations_total",
		Help:      "Contiguity and data quality violations found by the validator.",
	}, []string{"kind"})
)
