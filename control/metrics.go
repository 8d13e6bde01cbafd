package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operational metrics, separate from the domain telemetry.Snapshot
// protocol: these are for the operator's own Prometheus scrape, not the
// field's structured status record. Pattern grounded on
// controlplane/monitor/internal/device-telemetry/metrics.go's
// promauto.NewCounterVec package-level variables.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signalhead_tick_duration_seconds",
		Help:    "Wall-clock duration of one controller tick.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	callQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signalhead_call_queue_depth",
		Help: "Number of unserved calls currently in the call queue.",
	})

	barrierCrossingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalhead_barrier_crossings_total",
		Help: "Number of times the active barrier lock has changed.",
	})

	busFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalhead_bus_failures_total",
		Help: "Number of field-bus poll or send failures observed.",
	})

	busFailSafeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signalhead_bus_failsafe_active",
		Help: "1 while the controller is in the bus-failure LS_FLASH fail-safe, 0 otherwise.",
	})
)
