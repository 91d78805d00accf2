// Package metrics holds the Prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spendwatch"

var (
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "route"},
	)

	// DetectorRunsTotal counts detector passes by outcome ("ok" or "error").
	DetectorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_runs_total",
			Help:      "Total number of anomaly detector runs by detector and outcome.",
		},
		[]string{"detector", "outcome"},
	)

	DetectorDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detector_duration_seconds",
			Help:      "Anomaly detector run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"detector"},
	)

	// AnomaliesReturnedTotal counts anomalies handed back to callers, after ranking and truncation.
	AnomaliesReturnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_returned_total",
			Help:      "Total number of anomalies returned by type and severity.",
		},
		[]string{"type", "severity"},
	)

	MerchantCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merchant_cache_hits_total",
			Help:      "Total number of merchant history cache hits.",
		},
	)

	MerchantCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merchant_cache_misses_total",
			Help:      "Total number of merchant history cache misses.",
		},
	)
)
