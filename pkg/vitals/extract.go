package vitals

import (
	"fmt"

	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

// Metric names as they appear in audit results
const (
	MetricFirstContentfulPaint           = "first-contentful-paint"
	MetricLargestContentfulPaint         = "largest-contentful-paint"
	MetricInteractive                    = "interactive"
	MetricSpeedIndex                     = "speed-index"
	MetricCumulativeLayoutShift          = "cumulative-layout-shift"
	MetricCumulativeLayoutShiftAllFrames = "cumulative-layout-shift-all-frames"
)

// Inputs is everything an extractor may read. Extractors never modify it.
type Inputs struct {
	Timeline *Timeline
	Trace    *trace.Processed
}

// Extractor computes one metric independently of the others
type Extractor struct {
	Name    string
	Compute func(Inputs) (float64, error)
}

// Extractors returns every metric extractor in result order
func Extractors() []Extractor {
	return []Extractor{
		{Name: MetricFirstContentfulPaint, Compute: func(in Inputs) (float64, error) {
			return FirstContentfulPaint(in.Timeline)
		}},
		{Name: MetricLargestContentfulPaint, Compute: func(in Inputs) (float64, error) {
			return LargestContentfulPaint(in.Timeline)
		}},
		{Name: MetricInteractive, Compute: func(in Inputs) (float64, error) {
			return Interactive(in.Timeline)
		}},
		{Name: MetricSpeedIndex, Compute: func(in Inputs) (float64, error) {
			if in.Trace == nil {
				return 0, unavailable("no trace")
			}
			return SpeedIndex(in.Trace.VisualProgress, in.Timeline.FirstContentfulPaint)
		}},
		{Name: MetricCumulativeLayoutShift, Compute: func(in Inputs) (float64, error) {
			if in.Trace == nil {
				return 0, unavailable("no trace")
			}
			main, _, err := CumulativeLayoutShift(in.Trace.LayoutShifts)
			return main, err
		}},
		{Name: MetricCumulativeLayoutShiftAllFrames, Compute: func(in Inputs) (float64, error) {
			if in.Trace == nil {
				return 0, unavailable("no trace")
			}
			_, all, err := CumulativeLayoutShift(in.Trace.LayoutShifts)
			return all, err
		}},
	}
}

// Run evaluates ex. An unavailable metric yields a nil value and no error;
// a panicking extractor yields an error instead of taking down its caller.
func Run(ex Extractor, in Inputs) (value *float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("extractor %s panicked: %v", ex.Name, r)
		}
	}()

	if in.Timeline == nil {
		return nil, nil
	}
	v, err := ex.Compute(in)
	if err != nil {
		if IsUnavailable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("extractor %s: %w", ex.Name, err)
	}
	return &v, nil
}
