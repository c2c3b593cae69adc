package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crstransform",
		Subsystem: "registry",
		Name:      "lookups_total",
		Help:      "The total number of CRS lookups by result (hit, miss, error)",
	}, []string{"result"})

	storeInitMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crstransform",
		Subsystem: "registry",
		Name:      "store_init_failures_total",
		Help:      "The total number of definition stores that failed to initialize",
	}, []string{"store"})
)
