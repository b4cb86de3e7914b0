// Package metrics exposes Prometheus instrumentation for the search
// pipeline. Collectors are registered with promauto at package init and
// served by the HTTP server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogmcp_searches_total",
		Help: "Search requests by retrieval method and outcome.",
	}, []string{"method", "outcome"})

	RefinementRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blogmcp_refinement_rounds",
		Help:    "Retrieval rounds executed per search.",
		Buckets: prometheus.LinearBuckets(1, 1, 5),
	})

	DegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogmcp_degraded_total",
		Help: "Pipeline stages that fell back to degraded behavior.",
	}, []string{"stage"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blogmcp_search_duration_seconds",
		Help:    "End to end search latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	IngestedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogmcp_ingested_chunks_total",
		Help: "Chunks written per ingestion target.",
	}, []string{"target"})
)
