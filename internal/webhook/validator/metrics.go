package validator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var admissionDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "flork",
		Name:      "admission_decisions_total",
		Help:      "Total number of admission decisions by kind and outcome",
	},
	[]string{"kind", "allowed"},
)

func init() {
	metrics.Registry.MustRegister(admissionDecisions)
}

func recordDecision(kind string, allowed bool) {
	admissionDecisions.WithLabelValues(kind, strconv.FormatBool(allowed)).Inc()
}
