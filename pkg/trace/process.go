package trace

import (
	"math"
	"sort"
	"strconv"
)

// Frame is per-frame metadata from the trace
type Frame struct {
	ID     string `json:"id"`
	Parent string `json:"parent,omitempty"`
	URL    string `json:"url,omitempty"`
}

// LayoutShift is one layout-shift event. Time is relative to navigation start.
type LayoutShift struct {
	Time               float64  `json:"time"`
	Score              float64  `json:"score"`
	WeightedScoreDelta *float64 `json:"weighted_score_delta,omitempty"`
	HadRecentInput     bool     `json:"had_recent_input"`
	Frame              string   `json:"frame,omitempty"`
	IsMainFrame        bool     `json:"is_main_frame"`
}

// ProgressSample is the visual completeness (0..1) at a point in time
type ProgressSample struct {
	Time     float64 `json:"time"`
	Progress float64 `json:"progress"`
}

// Processed is the normalized view of a trace. All times are milliseconds
// relative to navigation start; optional paints are nil when absent.
type Processed struct {
	NavigationStartUs      float64          `json:"navigation_start_us"`
	MainFrameID            string           `json:"main_frame_id"`
	Frames                 []Frame          `json:"frames"`
	FirstPaint             *float64         `json:"first_paint,omitempty"`
	FirstContentfulPaint   *float64         `json:"first_contentful_paint,omitempty"`
	LargestContentfulPaint *float64         `json:"largest_contentful_paint,omitempty"`
	LCPInvalidated         bool             `json:"lcp_invalidated,omitempty"`
	LayoutShifts           []LayoutShift    `json:"layout_shifts,omitempty"`
	VisualProgress         []ProgressSample `json:"visual_progress,omitempty"`
	Tasks                  []*Task          `json:"tasks"`
	TraceEnd               float64          `json:"trace_end"`
}

// ToRelativeMs converts an absolute monotonic time in milliseconds (the
// network log's clock) to milliseconds relative to navigation start.
func (p *Processed) ToRelativeMs(absMs float64) float64 {
	return absMs - p.NavigationStartUs/1000
}

// Process extracts the audit-relevant view of a trace. It fails only when
// the trace has no navigation start; every other gap is reported by leaving
// the corresponding field empty.
func Process(t *Trace) (*Processed, error) {
	if t == nil || len(t.Events) == 0 {
		return nil, ErrEmptyTrace
	}

	events := make([]*Event, len(t.Events))
	for i := range t.Events {
		events[i] = &t.Events[i]
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	frames := collectFrames(events)
	mainFrame := ""
	for _, f := range frames {
		if f.Parent == "" {
			mainFrame = f.ID
			break
		}
	}

	nav := findNavigationStart(events, mainFrame)
	if nav == nil {
		return nil, ErrNoNavigationStart
	}
	if mainFrame == "" {
		mainFrame = nav.Frame()
	}

	p := &Processed{
		NavigationStartUs: nav.Timestamp,
		MainFrameID:       mainFrame,
		Frames:            frames,
	}
	rel := func(us float64) float64 { return (us - nav.Timestamp) / 1000 }

	mainThread := nav.thread()
	var threadEvents []*Event
	traceEnd := nav.Timestamp

	for _, e := range events {
		traceEnd = math.Max(traceEnd, e.End())
		if e.thread() == mainThread {
			threadEvents = append(threadEvents, e)
		}
		if e.Timestamp < nav.Timestamp {
			continue
		}
		inMainFrame := mainFrame == "" || e.Frame() == "" || e.Frame() == mainFrame

		switch e.Name {
		case EventFirstPaint:
			if inMainFrame && p.FirstPaint == nil {
				p.FirstPaint = ptr(rel(e.Timestamp))
			}
		case EventFirstContentful:
			if inMainFrame && p.FirstContentfulPaint == nil {
				p.FirstContentfulPaint = ptr(rel(e.Timestamp))
			}
		case EventLCPCandidate:
			if inMainFrame {
				p.LargestContentfulPaint = ptr(rel(e.Timestamp))
				p.LCPInvalidated = false
			}
		case EventLCPInvalidate:
			if inMainFrame {
				p.LCPInvalidated = true
			}
		case EventLayoutShift:
			p.LayoutShifts = append(p.LayoutShifts, layoutShift(e, rel(e.Timestamp), mainFrame))
		case EventScreenshot:
			if progress, ok := toFloat(e.Args["progress"]); ok {
				p.VisualProgress = append(p.VisualProgress, ProgressSample{
					Time:     rel(e.Timestamp),
					Progress: math.Max(0, math.Min(1, progress)),
				})
			}
		}
	}
	if p.LCPInvalidated {
		p.LargestContentfulPaint = nil
	}

	p.Tasks = buildTasks(threadEvents, nav.Timestamp)
	p.TraceEnd = rel(traceEnd)
	return p, nil
}

func collectFrames(events []*Event) []Frame {
	seen := make(map[string]bool)
	var frames []Frame
	add := func(raw any) {
		m, ok := raw.(map[string]any)
		if !ok {
			return
		}
		id, _ := m["frame"].(string)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		parent, _ := m["parent"].(string)
		url, _ := m["url"].(string)
		frames = append(frames, Frame{ID: id, Parent: parent, URL: url})
	}

	for _, e := range events {
		switch e.Name {
		case EventTracingStarted:
			if list, ok := e.Data()["frames"].([]any); ok {
				for _, f := range list {
					add(f)
				}
			}
		case EventFrameCommitted:
			add(e.Data())
		}
	}
	return frames
}

// findNavigationStart picks the first main-frame navigation that loads a
// document, then any main-frame navigation, then any navigation at all.
func findNavigationStart(events []*Event, mainFrame string) *Event {
	var firstMain, firstAny *Event
	for _, e := range events {
		if e.Name != EventNavigationStart {
			continue
		}
		if firstAny == nil {
			firstAny = e
		}
		if mainFrame != "" && e.Frame() != mainFrame {
			continue
		}
		if e.DataString("documentLoaderURL") != "" && (mainFrame != "" || e.DataBool("isLoadingMainFrame")) {
			return e
		}
		if firstMain == nil {
			firstMain = e
		}
	}
	if firstMain != nil {
		return firstMain
	}
	return firstAny
}

func layoutShift(e *Event, rel float64, mainFrame string) LayoutShift {
	ls := LayoutShift{
		Time:           rel,
		HadRecentInput: e.DataBool("had_recent_input"),
		Frame:          e.Frame(),
	}
	ls.Score, _ = e.DataFloat("score")
	if w, ok := e.DataFloat("weighted_score_delta"); ok {
		ls.WeightedScoreDelta = &w
	}
	if v, ok := e.Data()["is_main_frame"].(bool); ok {
		ls.IsMainFrame = v
	} else {
		ls.IsMainFrame = ls.Frame == "" || ls.Frame == mainFrame
	}
	return ls
}

func ptr(v float64) *float64 {
	return &v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
