package vitals

import (
	"sort"
)

// Quiet window parameters
const (
	QuietWindowMs         = 5000.0
	LongTaskThresholdMs   = 50.0
	MaxQuietWindowFlights = 2
)

// Interactive finds the first QuietWindowMs window at or after FCP with no
// long task and at most MaxQuietWindowFlights requests in flight, and
// returns the end of the last long task before it (or FCP). Without such a
// window it falls back to the timeline end.
//
// Observed windows must end inside the recording; a simulated timeline is
// complete, so nothing happens after its end.
func Interactive(tl *Timeline) (float64, error) {
	if tl.FirstContentfulPaint == nil {
		return 0, unavailable("interactive needs first contentful paint")
	}
	fcp := *tl.FirstContentfulPaint

	var long []Interval
	for _, task := range tl.Tasks {
		if task.Duration() > LongTaskThresholdMs {
			long = append(long, task)
		}
	}
	sort.SliceStable(long, func(i, j int) bool { return long[i].Start < long[j].Start })

	candidates := []float64{fcp}
	for _, task := range long {
		if task.End > fcp {
			candidates = append(candidates, task.End)
		}
	}
	for _, req := range tl.Requests {
		if req.End > fcp {
			candidates = append(candidates, req.End)
		}
	}
	sort.Float64s(candidates)

	for _, start := range candidates {
		end := start + QuietWindowMs
		if tl.Mode == ModeObserved && end > tl.End {
			break
		}
		if overlapsAny(long, start, end) || maxInFlight(tl.Requests, start, end) > MaxQuietWindowFlights {
			continue
		}
		tti := fcp
		for _, task := range long {
			if task.End <= start && task.End > tti {
				tti = task.End
			}
		}
		return tti, nil
	}
	return tl.End, nil
}

func overlapsAny(intervals []Interval, start, end float64) bool {
	for _, iv := range intervals {
		if iv.Start < end && iv.End > start {
			return true
		}
	}
	return false
}

// maxInFlight returns the peak number of requests in flight during [start, end)
func maxInFlight(requests []Interval, start, end float64) int {
	type edge struct {
		at    float64
		delta int
	}
	var edges []edge
	for _, req := range requests {
		if req.Start >= end || req.End <= start {
			continue
		}
		edges = append(edges, edge{at: max(req.Start, start), delta: 1}, edge{at: req.End, delta: -1})
	}
	// Departures before arrivals at the same instant.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at != edges[j].at {
			return edges[i].at < edges[j].at
		}
		return edges[i].delta < edges[j].delta
	})

	peak, current := 0, 0
	for _, e := range edges {
		current += e.delta
		peak = max(peak, current)
	}
	return peak
}
