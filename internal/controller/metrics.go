package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	janitorResultSuccess = "success"
	janitorResultError   = "error"
	janitorResultSkipped = "skipped"
)

var (
	janitorDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flork",
			Subsystem: "status_janitor",
			Name:      "deleted_total",
			Help:      "Total number of orphaned status ConfigMaps deleted by the janitor",
		},
	)

	janitorRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flork",
			Subsystem: "status_janitor",
			Name:      "runs_total",
			Help:      "Total number of scheduled janitor runs by result",
		},
		[]string{"result"},
	)

	configMapExceptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flork",
			Name:      "configmap_exceptions_total",
			Help:      "Total number of job ConfigMaps whose custom resource could not be parsed",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(janitorDeletedTotal, janitorRunsTotal, configMapExceptionsTotal)
}
