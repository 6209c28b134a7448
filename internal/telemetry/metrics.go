// Package telemetry holds the process's Prometheus counters and
// histograms plus the /metrics and /healthz HTTP server: promauto
// package-level vectors backing a plain net/http server with its own
// mux.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "fetch",
		Name:      "calls_total",
		Help:      "Total provider adapter calls attempted",
	}, []string{"source", "kind"})

	FetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "fetch",
		Name:      "retries_total",
		Help:      "Total retry attempts across all provider adapter calls",
	}, []string{"source", "kind"})

	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "fetch",
		Name:      "failures_total",
		Help:      "Total provider adapter calls that failed (after retries, for retryable errors), excluding cancellations",
	}, []string{"source", "kind", "error_kind"})

	FetchFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "fetch",
		Name:      "fallbacks_total",
		Help:      "Total times the Fetch Coordinator advanced to the next fallback source",
	}, []string{"kind"})

	FetchLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "govanalyze",
		Subsystem: "fetch",
		Name:      "call_duration_seconds",
		Help:      "Provider adapter call duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"source", "kind"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total response cache hits",
	}, []string{"kind"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total response cache misses",
	}, []string{"kind"})

	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Total response cache entries removed, by call kind and reason",
	}, []string{"kind", "reason"})

	CircuitBreakerOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "fetch",
		Name:      "circuit_breaker_open_total",
		Help:      "Total times a source's circuit breaker rejected a call while open",
	}, []string{"source"})

	SnapshotsBuiltTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "core",
		Name:      "snapshots_built_total",
		Help:      "Total snapshots successfully built",
	}, []string{"protocol", "provenance"})

	SnapshotBuildDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "core",
		Name:      "snapshots_degraded_total",
		Help:      "Total snapshots built with a degraded (simulated) provenance",
	}, []string{"protocol"})

	SnapshotBuildDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "govanalyze",
		Subsystem: "core",
		Name:      "snapshot_build_duration_seconds",
		Help:      "Full snapshot build duration, fetch through metric computation",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"protocol"})

	NormalizerDroppedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "normalizer",
		Name:      "dropped_records_total",
		Help:      "Total records dropped by the normalizer",
	}, []string{"kind"})

	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Total snapshot store put operations",
	}, []string{"backend"})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govanalyze",
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Total snapshot store operation errors",
	}, []string{"backend", "op"})
)
