// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_reads_total",
			Help: "Cache reads by resource and outcome (fresh, stale, miss)",
		},
		[]string{"resource", "outcome"},
	)

	CacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_fetches_total",
			Help: "Loader executions by resource and final status",
		},
		[]string{"resource", "status"},
	)

	CacheRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_retries_total",
			Help: "Loader retry attempts by resource",
		},
		[]string{"resource"},
	)

	CacheDiscardedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_cache_discarded_writes_total",
			Help: "Fetch results dropped because a newer write had already landed",
		},
		[]string{"resource"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_cache_evictions_total",
			Help: "Entries evicted by the LRU bound",
		},
	)

	PersistenceRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_persistence_recoveries_total",
			Help: "Storage errors recovered locally by operation",
		},
		[]string{"operation"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_submissions_total",
			Help: "Wizard submissions by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_submission_duration_seconds",
			Help:    "Duration of the submit-and-fan-out sequence",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45},
		},
	)

	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_geocode_requests_total",
			Help: "Geocoding lookups by outcome (ok, error, superseded)",
		},
		[]string{"outcome"},
	)
)
