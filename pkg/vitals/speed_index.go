package vitals

import (
	"math"
	"sort"

	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

// SpeedIndex integrates visual incompleteness from navigation start. The
// samples are normalized against the final one, and the result is never
// below fcp when fcp is known.
func SpeedIndex(samples []trace.ProgressSample, fcp *float64) (float64, error) {
	if len(samples) == 0 {
		return 0, unavailable("no visual progress samples")
	}
	sorted := append([]trace.ProgressSample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	final := sorted[len(sorted)-1].Progress
	if final <= 0 {
		return 0, unavailable("page never became visually complete")
	}

	var si, last, progress float64
	for _, s := range sorted {
		t := math.Max(s.Time, 0)
		si += (1 - progress) * (t - last)
		last = t
		progress = math.Min(s.Progress/final, 1)
	}

	if fcp != nil && si < *fcp {
		si = *fcp
	}
	return si, nil
}
