package metrics

import (
	"time"
)

// Cache request outcomes
const (
	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheCollapsed = "collapsed"
)

// Extraction outcomes
const (
	ExtractOK          = "ok"
	ExtractUnavailable = "unavailable"
	ExtractError       = "error"
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAudit records one audit run
func (r *Registry) RecordAudit(method string, err error, duration time.Duration) {
	r.AuditsTotal.WithLabelValues(method, status(err)).Inc()
	r.AuditDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordGraphBuild records a dependency graph build and its shape
func (r *Registry) RecordGraphBuild(err error, duration time.Duration, networkNodes, cpuNodes, relaxedLinks int) {
	r.GraphBuildsTotal.WithLabelValues(status(err)).Inc()
	r.GraphBuildDuration.Observe(duration.Seconds())
	if err != nil {
		return
	}
	r.GraphNodes.WithLabelValues("network").Observe(float64(networkNodes))
	r.GraphNodes.WithLabelValues("cpu").Observe(float64(cpuNodes))
	if relaxedLinks > 0 {
		r.GraphRelaxedLinks.Add(float64(relaxedLinks))
	}
}

// RecordSimulation records a simulation run
func (r *Registry) RecordSimulation(err error, duration time.Duration, events int, endTimeMs float64) {
	r.SimulationsTotal.WithLabelValues(status(err)).Inc()
	r.SimulationDuration.Observe(duration.Seconds())
	if err != nil {
		return
	}
	r.SimulationEvents.Observe(float64(events))
	r.SimulatedEndTime.Observe(endTimeMs)
}

// RecordSimulationFallback records a simulate-mode audit served from observed data
func (r *Registry) RecordSimulationFallback(reason string) {
	r.SimulationFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordCacheRequest records one computed-value cache lookup
func (r *Registry) RecordCacheRequest(kind, result string) {
	r.CacheRequestsTotal.WithLabelValues(kind, result).Inc()
}

// SetCacheEntries sets the number of memoized values
func (r *Registry) SetCacheEntries(n int) {
	r.CacheEntries.Set(float64(n))
}

// RecordExtraction records the outcome of one metric extractor
func (r *Registry) RecordExtraction(metric, result string) {
	r.MetricExtractionsTotal.WithLabelValues(metric, result).Inc()
}

// RecordArtifactRead records bytes read from an artifact source
func (r *Registry) RecordArtifactRead(source string, bytes int) {
	r.ArtifactBytesRead.WithLabelValues(source).Add(float64(bytes))
}
