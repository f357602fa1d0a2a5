package optimizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricOptimizeRuns counts hygiene sweeps by tenant and result.
	metricOptimizeRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memengine",
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Total optimiser sweeps by tenant_id and result (success, error)",
		},
		[]string{"tenant_id", "result"},
	)

	// metricOptimizeDuration tracks sweep latency by tenant.
	metricOptimizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memengine",
			Subsystem: "optimizer",
			Name:      "run_duration_seconds",
			Help:      "Duration of an optimiser sweep in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tenant_id"},
	)

	// metricOptimizeCoalesced counts sweeps that were coalesced onto an
	// already in-flight run by singleflight rather than executing.
	metricOptimizeCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memengine",
			Subsystem: "optimizer",
			Name:      "runs_coalesced_total",
			Help:      "Total optimiser calls that shared an in-flight sweep instead of running one",
		},
		[]string{"tenant_id"},
	)
)
