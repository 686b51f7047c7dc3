package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var watchesSynced = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "flork",
		Name:      "watches_synced",
		Help:      "Whether all watches of a controller completed their initial sync (1) or not (0).",
	},
	[]string{"controller"},
)

func init() {
	metrics.Registry.MustRegister(watchesSynced)
}
