package vitals

import (
	"sort"

	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

// Session window limits
const (
	SessionGapMs  = 1000.0
	SessionSpanMs = 5000.0
)

// CumulativeLayoutShift returns the largest session-window sum of layout
// shifts for the main frame (by score) and for all frames (by weighted
// score delta). Shifts following recent input are ignored.
func CumulativeLayoutShift(shifts []trace.LayoutShift) (mainFrame, allFrames float64, err error) {
	for _, s := range shifts {
		if s.WeightedScoreDelta == nil {
			return 0, 0, unavailable("layout shifts lack weighted_score_delta")
		}
	}

	var main, all []weightedShift
	for _, s := range shifts {
		if s.HadRecentInput {
			continue
		}
		all = append(all, weightedShift{time: s.Time, value: *s.WeightedScoreDelta})
		if s.IsMainFrame {
			main = append(main, weightedShift{time: s.Time, value: s.Score})
		}
	}
	return maxSessionWindow(main), maxSessionWindow(all), nil
}

type weightedShift struct {
	time  float64
	value float64
}

// maxSessionWindow groups shifts into windows that break on a gap over
// SessionGapMs or a span over SessionSpanMs, and returns the largest sum.
func maxSessionWindow(shifts []weightedShift) float64 {
	sort.SliceStable(shifts, func(i, j int) bool { return shifts[i].time < shifts[j].time })

	var best, current, windowStart, prev float64
	for i, s := range shifts {
		if i == 0 || s.time-prev > SessionGapMs || s.time-windowStart > SessionSpanMs {
			current = 0
			windowStart = s.time
		}
		current += s.value
		prev = s.time
		best = max(best, current)
	}
	return best
}
