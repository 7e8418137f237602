package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.SimulationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsim_simulations_total",
			Help: "Total number of simulations run",
		},
		[]string{"status"},
	)

	r.SimulationDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfsim_simulation_duration_seconds",
			Help:    "Wall time spent simulating one graph in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		},
	)

	r.SimulationEvents = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfsim_simulation_events",
			Help:    "Event loop iterations per simulation",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	r.SimulatedEndTime = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfsim_simulated_end_time_ms",
			Help:    "Simulated page load end time in milliseconds",
			Buckets: []float64{500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
	)

	r.SimulationFallbacksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsim_simulation_fallbacks_total",
			Help: "Simulate-mode audits that fell back to the observed timeline",
		},
		[]string{"reason"},
	)
}
