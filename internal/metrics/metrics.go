// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pawpals"

var (
	// Quota ledger
	QuotaUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "youtube_quota_used_units",
			Help:      "Upstream quota units consumed in the current window",
		},
	)

	QuotaLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "youtube_quota_limit_units",
			Help:      "Upstream quota units available per window",
		},
	)

	QuotaReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "youtube_quota_reservations_total",
			Help:      "Quota reservations by operation and result",
		},
		[]string{"operation", "result"}, // result: granted, denied
	)

	QuotaWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "youtube_quota_warnings_total",
			Help:      "Number of times usage crossed the warning threshold",
		},
	)

	// Gateway cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_cache_lookups_total",
			Help:      "Gateway cache lookups by operation and result",
		},
		[]string{"operation", "result"}, // result: hit, miss, negative_hit
	)

	// Upstream provider
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "youtube_requests_total",
			Help:      "Upstream provider calls by operation and outcome",
		},
		[]string{"operation", "outcome"}, // outcome: success, not_found, error, timeout, rejected
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "youtube_request_duration_seconds",
			Help:      "Upstream provider call latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-identity limiter",
		},
		[]string{"scope"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)
