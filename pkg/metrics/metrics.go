// Package metrics registers the Prometheus collectors for cache operations.
// The collectors are package level and registered with the default registry
// on import, so any binary linking pkg/cache exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

var (
	// LookupsTotal counts GetEntry calls labelled by model and result
	// ("hit" or "miss").
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_lookups_total",
			Help: "Total number of cache lookups.",
		},
		[]string{"model", "result"},
	)

	// WritesTotal counts entries written per model.
	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_writes_total",
			Help: "Total number of cache entries written.",
		},
		[]string{"model"},
	)

	// EvictedEntriesTotal counts entries removed by Clear.
	EvictedEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_evicted_entries_total",
			Help: "Total number of cache entries removed by eviction.",
		},
	)

	// CollectedStringsTotal counts interned strings removed by garbage collection.
	CollectedStringsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_collected_strings_total",
			Help: "Total number of unreferenced interned strings removed.",
		},
	)

	// OperationDuration observes storage operation latency in seconds,
	// labelled by operation ("add", "get", "clear", "aggregate").
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "respcache_operation_duration_seconds",
			Help:    "Cache storage operation duration in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)
