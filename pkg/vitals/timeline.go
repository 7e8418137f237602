// Package vitals extracts user-centric load metrics from a timeline of
// main-thread tasks, requests and paints.
package vitals

import (
	"math"

	"github.com/dd0wney/cluso-perfsim/pkg/graph"
	"github.com/dd0wney/cluso-perfsim/pkg/network"
	"github.com/dd0wney/cluso-perfsim/pkg/simulator"
	"github.com/dd0wney/cluso-perfsim/pkg/trace"
)

// Mode says where a timeline's times came from
type Mode string

const (
	ModeObserved  Mode = "observed"
	ModeSimulated Mode = "simulated"
)

// Interval is a span in ms relative to navigation start
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start
func (i Interval) Duration() float64 { return i.End - i.Start }

// Timeline is the input every timing extractor reads. It is immutable once
// built and safe to share between extractors.
type Timeline struct {
	Mode                   Mode       `json:"mode"`
	Tasks                  []Interval `json:"tasks"`
	Requests               []Interval `json:"requests"`
	FirstContentfulPaint   *float64   `json:"first_contentful_paint,omitempty"`
	LargestContentfulPaint *float64   `json:"largest_contentful_paint,omitempty"`
	End                    float64    `json:"end"`
}

// ObservedTimeline builds the timeline of what actually happened
func ObservedTimeline(p *trace.Processed, records []*network.Record) *Timeline {
	tl := &Timeline{
		Mode:                 ModeObserved,
		FirstContentfulPaint: p.FirstContentfulPaint,
		End:                  p.TraceEnd,
	}
	if !p.LCPInvalidated {
		tl.LargestContentfulPaint = p.LargestContentfulPaint
	}

	for _, task := range p.Tasks {
		tl.Tasks = append(tl.Tasks, Interval{Start: task.Start, End: task.End})
		tl.End = math.Max(tl.End, task.End)
	}
	for _, rec := range records {
		if rec.IsNonNetworkProtocol() {
			continue
		}
		iv := Interval{Start: p.ToRelativeMs(rec.StartTime), End: p.ToRelativeMs(rec.EndTime)}
		if iv.End < iv.Start {
			iv.End = iv.Start
		}
		tl.Requests = append(tl.Requests, iv)
		tl.End = math.Max(tl.End, iv.End)
	}
	return tl
}

// SimulatedTimeline builds the timeline a simulation predicts for g
func SimulatedTimeline(g *graph.Graph, res *simulator.Result) *Timeline {
	tl := &Timeline{Mode: ModeSimulated, End: res.EndTime}

	for _, n := range g.Nodes() {
		tm, ok := res.Timing(n.ID())
		if !ok {
			continue
		}
		iv := Interval{Start: tm.Start, End: tm.End}
		switch n := n.(type) {
		case *graph.CPUNode:
			tl.Tasks = append(tl.Tasks, iv)
		case *graph.NetworkNode:
			if n.Record == nil || !n.Record.IsNonNetworkProtocol() {
				tl.Requests = append(tl.Requests, iv)
			}
		case *graph.CheckpointNode:
			end := tm.End
			switch n.Name {
			case graph.CheckpointFirstContentfulPaint:
				tl.FirstContentfulPaint = &end
			case graph.CheckpointLargestContentfulPaint:
				tl.LargestContentfulPaint = &end
			}
		}
	}
	return tl
}
