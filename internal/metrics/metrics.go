package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event admission metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_events_total",
			Help: "Total number of events processed, by outcome status",
		},
		[]string{"status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_event_bytes_total",
			Help: "Total bytes of event payload data received",
		},
	)

	BlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_blocked_total",
			Help: "Total number of blocked events, by reason and category",
		},
		[]string{"reason", "category"},
	)

	DuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_duplicates_total",
			Help: "Total number of events dropped as duplicates",
		},
	)

	// Dependency health metrics
	DependencyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_dependency_errors_total",
			Help: "Total number of dependency failures handled fail-open",
		},
		[]string{"dependency"},
	)

	// Cache decorator metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_cache_hits_total",
			Help: "Total number of cache-aside hits, by key prefix",
		},
		[]string{"prefix"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_cache_misses_total",
			Help: "Total number of cache-aside misses, by key prefix",
		},
		[]string{"prefix"},
	)

	CacheStaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_cache_stale_served_total",
			Help: "Total number of stale values served while revalidating",
		},
		[]string{"prefix"},
	)

	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_process_duration_seconds",
			Help:    "Duration of the full admission pipeline in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
