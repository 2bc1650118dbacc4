package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptgate",
		Name:      "requests_total",
		Help:      "Prompt executions by backend and outcome.",
	}, []string{"backend", "outcome"})

	metricFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptgate",
		Name:      "fallback_attempts_total",
		Help:      "Fallback attempts by failed primary backend.",
	}, []string{"primary"})

	metricSpawns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptgate",
		Name:      "process_spawns_total",
		Help:      "External backend processes spawned.",
	}, []string{"backend"})

	metricDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "promptgate",
		Name:      "backend_duration_seconds",
		Help:      "Wall-clock duration of backend process runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"backend"})

	metricActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "promptgate",
		Name:      "streams_active",
		Help:      "Streaming relays currently running.",
	})
)
