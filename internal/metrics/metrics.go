package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session cache metrics
	SessionCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lifesync_session_cache_size",
			Help: "Number of live sessions held in the session cache",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifesync_session_cache_hits_total",
			Help: "Reconciliations served from the session cache",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifesync_session_cache_misses_total",
			Help: "Reconciliations that had to rebuild history",
		},
	)

	SessionEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifesync_session_evictions_total",
			Help: "Sessions removed from the cache",
		},
		[]string{"reason"},
	)

	// Conversation metrics
	ReconcileSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifesync_reconcile_source_total",
			Help: "Where reconciled histories came from",
		},
		[]string{"source"},
	)

	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifesync_turns_total",
			Help: "Chat turns by outcome",
		},
		[]string{"status"},
	)

	CompletionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifesync_completion_duration_seconds",
			Help:    "Completion capability latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifesync_persist_failures_total",
			Help: "Chat records that failed to persist after a turn",
		},
	)
)
