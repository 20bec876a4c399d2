package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ttfmpSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "embed_report_ttfmp_seconds",
		Help:    "Time to first meaningful paint per embed instance",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	ttiSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "embed_report_tti_seconds",
		Help:    "Time to interactive per embed instance",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "embed_report_events_total",
		Help: "Lifecycle events recorded by kind",
	}, []string{"kind"})

	reportsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "embed_reports_active",
		Help: "Embed instances currently tracked",
	})
)
