package audit

import (
	"sort"

	"github.com/dd0wney/cluso-perfsim/pkg/vitals"
)

// MetricValue pairs the reported value with what was actually observed.
// Under provided throttling both are the same; nil means unavailable.
type MetricValue struct {
	Value         *float64 `json:"value"`
	ObservedValue *float64 `json:"observedValue"`
}

// Result maps metric name to value. Every known metric is present, with
// nil values for the ones that could not be computed.
type Result map[string]MetricValue

// MetricNames returns the metric keys in reporting order
func MetricNames() []string {
	extractors := vitals.Extractors()
	names := make([]string, len(extractors))
	for i, ex := range extractors {
		names[i] = ex.Name
	}
	return names
}

// Names returns the result's keys in reporting order, unknown keys last
func (r Result) Names() []string {
	order := make(map[string]int)
	for i, name := range MetricNames() {
		order[name] = i
	}
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iKnown := order[names[i]]
		oj, jKnown := order[names[j]]
		if iKnown != jKnown {
			return iKnown
		}
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}
