package leafsearch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSplitsSearchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leafsearch",
		Name:      "splits_searched_total",
		Help:      "Total number of splits whose search succeeded, including result cache hits.",
	})

	metricSplitsPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leafsearch",
		Name:      "splits_pruned_total",
		Help:      "Total number of splits skipped because they could not improve the current top-K.",
	})

	metricSplitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leafsearch",
		Name:      "split_failures_total",
		Help:      "Total number of per-split search failures.",
	})

	metricResultCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leafsearch",
		Name:      "result_cache_hits_total",
		Help:      "Total number of leaf result cache hits.",
	})

	metricSplitSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "leafsearch",
		Name:      "split_search_duration_seconds",
		Help:      "Time spent opening, warming up, and searching a single split.",
		Buckets:   prometheus.DefBuckets,
	})
)
