// Package metrics provides the centralized Prometheus metrics registry for
// the embed resilience layer. All metrics are defined in their respective
// packages (cache, recovery, lifecycle) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the resilience layer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - embed_cache_hits_total (Counter): Cache hits
//   - embed_cache_misses_total (Counter): Cache misses
//   - embed_cache_evictions_total{reason} (Counter): Evictions by reason (capacity, expired)
//   - embed_cache_entries (Gauge): Entries currently cached
//
// Retry Metrics (pkg/recovery):
//   - embed_retries_total{kind} (Counter): Retry attempts by failure kind
//   - embed_retry_backoff_seconds{kind} (Histogram): Backoff duration by failure kind
//   - embed_retry_exhausted_total{kind} (Counter): Resources that exhausted max retries
//   - embed_rate_limit_suppressed_total (Counter): Retries refused by the cooldown window
//
// Lifecycle Metrics (pkg/lifecycle):
//   - embed_report_ttfmp_seconds (Histogram): Time to first meaningful paint
//   - embed_report_tti_seconds (Histogram): Time to interactive
//   - embed_report_events_total{kind} (Counter): Lifecycle events by kind
//   - embed_reports_active (Gauge): Embed instances currently tracked
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(embed_cache_hits_total[5m])) /
//   (sum(rate(embed_cache_hits_total[5m])) + sum(rate(embed_cache_misses_total[5m])))
//
//   # Retry Pressure by Kind
//   rate(embed_retries_total[5m])
//
//   # Exhaustion Rate
//   rate(embed_retry_exhausted_total[5m])
//
//   # P95 Time to Interactive
//   histogram_quantile(0.95, rate(embed_report_tti_seconds_bucket[5m]))
//
//   # Active Rate Limit Suppression
//   rate(embed_rate_limit_suppressed_total[5m]) > 0
