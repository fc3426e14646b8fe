// Package metrics holds the Prometheus collectors for a crawl run.
// All collectors register with the default registry via promauto and are
// served by the status server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts successful page retrievals by engine.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namecrawl_pages_fetched_total",
		Help: "Total number of listing pages fetched successfully",
	}, []string{"engine"})

	// FetchErrors counts failed page retrievals by error code.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namecrawl_fetch_errors_total",
		Help: "Total number of failed listing page fetches",
	}, []string{"code"})

	// FetchDuration observes the wall time of one network retrieval,
	// excluding the rate limiter wait.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "namecrawl_fetch_duration_seconds",
		Help:    "Listing page fetch duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RateLimitWait observes how long each fetch waited for a permit.
	RateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "namecrawl_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the global fetch permit",
		Buckets: []float64{0, 0.1, 0.5, 1, 2, 5},
	})

	// CacheHits counts page fetches answered from the page cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "namecrawl_cache_hits_total",
		Help: "Total number of page fetches served from cache",
	})

	// RecordsWritten counts records persisted into partition snapshots.
	RecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namecrawl_records_written_total",
		Help: "Total number of records appended to partition snapshots",
	}, []string{"dataset"})

	// PagesSkipped counts pages given up on without abandoning the partition.
	PagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namecrawl_pages_skipped_total",
		Help: "Total number of pages skipped after exhausting retries",
	}, []string{"dataset"})

	// Partitions counts partitions reaching a terminal state.
	Partitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namecrawl_partitions_total",
		Help: "Total number of partitions finished, by terminal state",
	}, []string{"dataset", "state"})

	// MergedRecords reports the size of the last consolidated dataset.
	MergedRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "namecrawl_merged_records",
		Help: "Number of unique records in the last consolidated dataset",
	}, []string{"dataset"})
)
