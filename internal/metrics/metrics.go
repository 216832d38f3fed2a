// Package metrics holds the prometheus collectors shared by the storage,
// source, aggregation and simulation layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "f1dash"

var (
	PoolAcquireWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "acquire_wait_seconds",
		Help:      "Time spent waiting for a pooled database connection.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	PoolAcquireFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "acquire_failures_total",
		Help:      "Failed connection acquisitions by reason.",
	}, []string{"reason"})

	PoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "connections",
		Help:      "Pooled database connections by state.",
	}, []string{"state"})

	PoolDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "discarded_total",
		Help:      "Connections discarded after being marked broken.",
	})

	QueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "query_failures_total",
		Help:      "Failed queries by operation.",
	}, []string{"op"})

	SourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "fetches_total",
		Help:      "External source fetches by source and outcome.",
	}, []string{"source", "outcome"})

	SourceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "External source fetch latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	SourceCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "cache_hits_total",
		Help:      "External source cache hits by source and cache tier.",
	}, []string{"source", "tier"})

	AggregationQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregation",
		Name:      "queries_total",
		Help:      "Composite queries by outcome.",
	}, []string{"outcome"})

	AggregationFieldStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregation",
		Name:      "field_status_total",
		Help:      "Composite query field outcomes by sub-source and status.",
	}, []string{"source", "status"})

	SimulationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "simulation",
		Name:      "ticks_total",
		Help:      "Completed simulation ticks.",
	})

	SimulationSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "simulation",
		Name:      "skipped_keys_total",
		Help:      "Live keys skipped during a tick because they could not be produced.",
	})

	SimulationRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "simulation",
		Name:      "running",
		Help:      "1 while the simulation engine is running.",
	})

	LiveStoreWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "live",
		Name:      "writes_total",
		Help:      "Live state entries written.",
	})
)
