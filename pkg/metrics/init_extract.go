package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initExtractMetrics() {
	r.MetricExtractionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsim_metric_extractions_total",
			Help: "Metric extractions by metric and outcome (ok, unavailable, error)",
		},
		[]string{"metric", "result"},
	)
}

func (r *Registry) initArtifactMetrics() {
	r.ArtifactBytesRead = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsim_artifact_bytes_read_total",
			Help: "Bytes of trace and network log artifacts read by source",
		},
		[]string{"source"},
	)
}
