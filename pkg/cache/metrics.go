package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks lookups that found a live entry
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embed_cache_hits_total",
			Help: "Total number of embed cache hits",
		},
	)

	// cacheMisses tracks lookups for absent resource ids
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embed_cache_misses_total",
			Help: "Total number of embed cache misses",
		},
	)

	// cacheEvictions tracks removals by reason
	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embed_cache_evictions_total",
			Help: "Total number of embed cache evictions",
		},
		[]string{"reason"}, // "capacity", "expired"
	)

	// cacheEntries tracks the current number of live entries
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "embed_cache_entries",
			Help: "Current number of live embed cache entries",
		},
	)
)
