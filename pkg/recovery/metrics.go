package recovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry orchestration.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "embed_retries_total",
		Help: "Total number of retry attempts by failure kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "embed_retry_backoff_seconds",
		Help:    "Backoff duration for retries by failure kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "embed_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by failure kind",
	}, []string{"kind"})

	rateLimitSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "embed_rate_limit_suppressed_total",
		Help: "Total number of retries refused because the rate-limit cooldown window was active",
	})
)
