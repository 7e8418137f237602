package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.SimulationsTotal == nil || r.SimulationFallbacksTotal == nil {
		t.Error("simulation metrics not initialized")
	}
	if r.CacheRequestsTotal == nil {
		t.Error("CacheRequestsTotal not initialized")
	}
	if r.GraphBuildsTotal == nil {
		t.Error("GraphBuildsTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordSimulation(t *testing.T) {
	r := NewRegistry()

	r.RecordSimulation(nil, 2*time.Millisecond, 120, 3400)
	r.RecordSimulation(nil, 3*time.Millisecond, 80, 2100)
	r.RecordSimulation(errors.New("stalled"), time.Millisecond, 0, 0)

	ok, err := r.SimulationsTotal.GetMetricWithLabelValues("success")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if got := counterValue(t, ok); got != 2 {
		t.Errorf("success counter = %v, want 2", got)
	}

	failed, _ := r.SimulationsTotal.GetMetricWithLabelValues("error")
	if got := counterValue(t, failed); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}

	var metric dto.Metric
	if err := r.SimulationEvents.Write(&metric); err != nil {
		t.Fatal(err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("events sample count = %d, want 2", metric.Histogram.GetSampleCount())
	}
}

func TestRecordSimulationFallback(t *testing.T) {
	r := NewRegistry()
	r.RecordSimulationFallback("graph")
	r.RecordSimulationFallback("graph")
	r.RecordSimulationFallback("stall")

	c, _ := r.SimulationFallbacksTotal.GetMetricWithLabelValues("graph")
	if got := counterValue(t, c); got != 2 {
		t.Errorf("graph fallbacks = %v, want 2", got)
	}
}

func TestRecordGraphBuild(t *testing.T) {
	r := NewRegistry()
	r.RecordGraphBuild(nil, time.Millisecond, 12, 4, 2)
	r.RecordGraphBuild(errors.New("cycle"), time.Millisecond, 0, 0, 0)

	if got := counterValue(t, r.GraphRelaxedLinks); got != 2 {
		t.Errorf("relaxed links = %v, want 2", got)
	}
	c, _ := r.GraphBuildsTotal.GetMetricWithLabelValues("error")
	if got := counterValue(t, c); got != 1 {
		t.Errorf("failed builds = %v, want 1", got)
	}
}

func TestRecordCacheAndExtraction(t *testing.T) {
	r := NewRegistry()
	r.RecordCacheRequest("graph", CacheMiss)
	r.RecordCacheRequest("graph", CacheHit)
	r.RecordCacheRequest("graph", CacheHit)
	r.SetCacheEntries(3)
	r.RecordExtraction("interactive", ExtractUnavailable)
	r.RecordArtifactRead("file", 2048)

	hits, _ := r.CacheRequestsTotal.GetMetricWithLabelValues("graph", CacheHit)
	if got := counterValue(t, hits); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}
	unavailable, _ := r.MetricExtractionsTotal.GetMetricWithLabelValues("interactive", ExtractUnavailable)
	if got := counterValue(t, unavailable); got != 1 {
		t.Errorf("unavailable extractions = %v, want 1", got)
	}
}

func TestMetricsExposition(t *testing.T) {
	r := NewRegistry()
	r.RecordAudit("simulate", nil, 10*time.Millisecond)
	r.RecordSimulationFallback("stall")

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
		if !strings.HasPrefix(mf.GetName(), "perfsim_") {
			t.Errorf("metric %s lacks the perfsim_ prefix", mf.GetName())
		}
	}
	for _, want := range []string{"perfsim_audits_total", "perfsim_simulation_fallbacks_total"} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}
