package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Audit Metrics
	AuditsTotal   *prometheus.CounterVec
	AuditDuration *prometheus.HistogramVec

	// Graph Metrics
	GraphBuildsTotal   *prometheus.CounterVec
	GraphNodes         *prometheus.HistogramVec
	GraphRelaxedLinks  prometheus.Counter
	GraphBuildDuration prometheus.Histogram

	// Simulation Metrics
	SimulationsTotal         *prometheus.CounterVec
	SimulationDuration       prometheus.Histogram
	SimulationEvents         prometheus.Histogram
	SimulatedEndTime         prometheus.Histogram
	SimulationFallbacksTotal *prometheus.CounterVec

	// Cache Metrics
	CacheRequestsTotal *prometheus.CounterVec
	CacheEntries       prometheus.Gauge

	// Extraction Metrics
	MetricExtractionsTotal *prometheus.CounterVec

	// Artifact Metrics
	ArtifactBytesRead *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initAuditMetrics()
	r.initGraphMetrics()
	r.initSimulationMetrics()
	r.initCacheMetrics()
	r.initExtractMetrics()
	r.initArtifactMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
