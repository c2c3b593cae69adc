package transform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pointsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crstransform",
		Subsystem: "transform",
		Name:      "points_total",
		Help:      "The total number of coordinate tuples transformed by chain path",
	}, []string{"path"})

	errorsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crstransform",
		Subsystem: "transform",
		Name:      "errors_total",
		Help:      "The total number of failed transformations",
	})
)
