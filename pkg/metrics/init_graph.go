package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGraphMetrics() {
	r.GraphBuildsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsim_graph_builds_total",
			Help: "Total number of dependency graph builds",
		},
		[]string{"status"},
	)

	r.GraphNodes = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfsim_graph_nodes",
			Help:    "Nodes per dependency graph",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000},
		},
		[]string{"kind"},
	)

	r.GraphRelaxedLinks = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "perfsim_graph_relaxed_links_total",
			Help: "Requests attached to the root because their initiator could not be resolved",
		},
	)

	r.GraphBuildDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfsim_graph_build_duration_seconds",
			Help:    "Dependency graph build duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		},
	)
}
