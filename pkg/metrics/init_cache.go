package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCacheMetrics() {
	r.CacheRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsim_cache_requests_total",
			Help: "Computed-value cache requests by kind and outcome",
		},
		[]string{"kind", "result"},
	)

	r.CacheEntries = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "perfsim_cache_entries",
			Help: "Values currently memoized in the computed-value cache",
		},
	)
}
