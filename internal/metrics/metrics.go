// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ikimatch"

var (
	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of match searches by outcome (ok or error code)",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of match searches in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"outcome"},
	)

	PoolSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_pool_size",
			Help:      "Number of eligible candidates per search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	ScorerAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_attempts_total",
			Help:      "Calls to the scoring backend by provider and result",
		},
		[]string{"provider", "result"},
	)

	DroppedJudgments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_judgments_total",
			Help:      "Judgments discarded during validation or assembly",
		},
		[]string{"reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judgment_cache_lookups_total",
			Help:      "Judgment cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
