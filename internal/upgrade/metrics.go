package upgrade

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Pause transitions recorded by pauseTransitionsCounter.
const (
	transitionPaused             = "paused"
	transitionAlreadyPaused      = "already_paused"
	transitionPausedIndefinitely = "paused_indefinitely"
	transitionResumed            = "resumed"
)

var (
	// pausedGauge is 1 while reconciliation is paused for an upgrade.
	pausedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flork",
			Subsystem: "upgrade",
			Name:      "paused",
			Help:      "Whether reconciliation is paused for a controller upgrade (1) or not (0)",
		},
	)

	pauseTransitionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flork",
			Subsystem: "upgrade",
			Name:      "pause_transitions_total",
			Help:      "Total number of upgrade pause requests by outcome",
		},
		[]string{"transition"},
	)
)

func init() {
	metrics.Registry.MustRegister(pausedGauge, pauseTransitionsCounter)
}

func recordPaused(paused bool) {
	if paused {
		pausedGauge.Set(1)
		return
	}
	pausedGauge.Set(0)
}
