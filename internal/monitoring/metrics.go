package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svgforge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "svgforge_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "svgforge_http_inflight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Credential pool metrics
	PoolAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svgforge_pool_admissions_total",
			Help: "Total number of leases granted per pooled credential",
		},
		[]string{"credential"},
	)

	PoolActiveHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "svgforge_pool_active_holders",
			Help: "Outstanding leases per pooled credential",
		},
		[]string{"credential"},
	)

	PoolWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "svgforge_pool_waiters",
			Help: "Callers currently blocked waiting for a pool credential",
		},
	)

	// Upstream call metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svgforge_upstream_requests_total",
			Help: "Total number of upstream generateContent calls",
		},
		[]string{"status_class"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "svgforge_upstream_request_duration_seconds",
			Help:    "Upstream call latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status_class"},
	)

	// Quota ledger metrics
	QuotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svgforge_quota_decisions_total",
			Help: "Daily trial decisions by outcome (allowed/denied/error)",
		},
		[]string{"outcome"},
	)

	// Edge rate limiter bookkeeping
	RateLimitKeysGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "svgforge_ratelimit_keys",
			Help: "Per-key limiters currently cached",
		},
	)

	RateLimitSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "svgforge_ratelimit_sweeps_total",
			Help: "TTL sweeps performed on the limiter cache",
		},
	)
)
