package sharing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricDeliveries counts replica delivery attempts by resulting status
// (active, unreachable), grounded on the teacher's vectorstore health
// counters (promauto.NewCounterVec keyed by outcome).
var metricDeliveries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "memengine",
		Subsystem: "sharing",
		Name:      "deliveries_total",
		Help:      "Total share replica delivery attempts by resulting status (active, unreachable)",
	},
	[]string{"status"},
)
