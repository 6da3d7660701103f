// Package metrics exposes the prometheus instrumentation for the
// search pipeline. Collectors are package-level and registered with the
// default registry via promauto; the API serves them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventscout",
		Name:      "searches_total",
		Help:      "Total number of search pipeline runs",
	}, []string{"outcome"}) // completed, cache_hit, empty

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventscout",
		Name:      "search_duration_seconds",
		Help:      "End-to-end search pipeline duration",
		Buckets:   []float64{0.05, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventscout",
		Name:      "stage_duration_seconds",
		Help:      "Per-stage pipeline duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventscout",
		Name:      "provider_calls_total",
		Help:      "Search provider calls by outcome",
	}, []string{"provider", "outcome"}) // outcome: success, failure, rate_limited

	EventsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventscout",
		Name:      "events_returned",
		Help:      "Number of events returned per search",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 12, 20},
	})

	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventscout",
		Name:      "cache_operations_total",
		Help:      "Result and search cache operations",
	}, []string{"cache", "op"}) // op: hit, miss, set, evict

	AutoExpansions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventscout",
		Name:      "auto_expansions_total",
		Help:      "Searches that widened their date window",
	})

	LLMOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventscout",
		Name:      "llm_chunk_outcomes_total",
		Help:      "Prioritiser chunk outcomes by category",
	}, []string{"outcome"})
)

// ObserveSearch records one completed pipeline run.
func ObserveSearch(duration time.Duration, events int, cacheHit, expanded bool) {
	outcome := "completed"
	switch {
	case cacheHit:
		outcome = "cache_hit"
	case events == 0:
		outcome = "empty"
	}
	Searches.WithLabelValues(outcome).Inc()
	SearchDuration.Observe(duration.Seconds())
	EventsReturned.Observe(float64(events))
	if expanded {
		AutoExpansions.Inc()
	}
}

// ObserveStages records the per-stage timing map the pipeline collects.
func ObserveStages(timings map[string]int64) {
	for stage, ms := range timings {
		StageDuration.WithLabelValues(stage).Observe(float64(ms) / 1000)
	}
}
