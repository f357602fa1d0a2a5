package conflict

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricResolutions counts Resolve outcomes by conflict type and
// terminal/intermediate status (resolved, pending_approval, escalated).
var metricResolutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "memengine",
		Subsystem: "conflict",
		Name:      "resolutions_total",
		Help:      "Total conflict resolution attempts by conflict_type and outcome",
	},
	[]string{"conflict_type", "outcome"},
)
