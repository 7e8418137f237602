package trace

import (
	"sort"
)

// Task is a main-thread task. Only top-level tasks are scheduled on the
// simulated CPU; children are kept for attribution. Times are milliseconds
// relative to navigation start.
type Task struct {
	Name     string  `json:"name"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Depth    int     `json:"depth"`
	Children []*Task `json:"children,omitempty"`
	Parent   *Task   `json:"-"`

	// Attribution, aggregated onto the top-level task from its subtree.
	URLs                []string `json:"urls,omitempty"`
	InitiatedRequestIDs []string `json:"initiated_request_ids,omitempty"`
	TimerInstalls       []string `json:"timer_installs,omitempty"`
	TimerFires          []string `json:"timer_fires,omitempty"`
	DidPerformLayout    bool     `json:"did_perform_layout,omitempty"`

	// Index is the position in the top-level sequence
	Index int `json:"index"`
}

// Duration returns End - Start in milliseconds
func (t *Task) Duration() float64 {
	return t.End - t.Start
}

// Root returns the top-level ancestor of t
func (t *Task) Root() *Task {
	for t.Parent != nil {
		t = t.Parent
	}
	return t
}

// Walk visits t and all descendants depth first
func (t *Task) Walk(fn func(*Task)) {
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// buildTasks nests complete events into a forest by containment and returns
// the top-level sequence ordered by start time. Instant events inside a
// top-level task contribute to its attribution.
func buildTasks(events []*Event, navStartUs float64) []*Task {
	complete := make([]*Event, 0, len(events))
	instants := make([]*Event, 0)
	for _, e := range events {
		switch e.Phase {
		case PhaseComplete:
			if e.Duration >= 0 {
				complete = append(complete, e)
			}
		case PhaseInstant, PhaseInstantL:
			instants = append(instants, e)
		}
	}

	// Parents sort before the children they contain.
	sort.SliceStable(complete, func(i, j int) bool {
		if complete[i].Timestamp != complete[j].Timestamp {
			return complete[i].Timestamp < complete[j].Timestamp
		}
		return complete[i].Duration > complete[j].Duration
	})

	toMs := func(us float64) float64 { return (us - navStartUs) / 1000 }

	var roots []*Task
	var stack []*Task
	for _, e := range complete {
		task := &Task{Name: e.Name, Start: toMs(e.Timestamp), End: toMs(e.End())}

		for len(stack) > 0 && stack[len(stack)-1].End <= task.Start {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, task)
		} else {
			parent := stack[len(stack)-1]
			// Overlapping siblings are clipped to their parent.
			if task.End > parent.End {
				task.End = parent.End
			}
			task.Parent = parent
			task.Depth = parent.Depth + 1
			parent.Children = append(parent.Children, task)
		}
		stack = append(stack, task)
		attribute(task.Root(), e)
	}

	kept := roots[:0]
	for _, t := range roots {
		if t.End < 0 {
			continue
		}
		kept = append(kept, t)
	}
	roots = kept

	for _, e := range instants {
		ts := toMs(e.Timestamp)
		i := sort.Search(len(roots), func(i int) bool { return roots[i].End >= ts })
		if i < len(roots) && roots[i].Start <= ts {
			attribute(roots[i], e)
		}
	}

	for i, t := range roots {
		t.Index = i
	}
	return roots
}

func attribute(top *Task, e *Event) {
	switch e.Name {
	case EventEvaluateScript, EventV8Compile, EventFunctionCall:
		top.URLs = appendUnique(top.URLs, e.DataString("url"))
	case EventParseHTML:
		top.URLs = appendUnique(top.URLs, e.ArgString("url"))
	case EventParseStyleSheet:
		top.URLs = appendUnique(top.URLs, e.DataString("styleSheetUrl"))
	case EventXHRReadyState:
		if state, ok := e.DataFloat("readyState"); ok && state == 4 {
			top.URLs = appendUnique(top.URLs, e.DataString("url"))
		}
	case EventResourceSend:
		top.InitiatedRequestIDs = appendUnique(top.InitiatedRequestIDs, e.DataString("requestId"))
	case EventTimerInstall:
		top.TimerInstalls = appendUnique(top.TimerInstalls, timerID(e))
	case EventTimerFire:
		top.TimerFires = appendUnique(top.TimerFires, timerID(e))
	case EventLayout, EventUpdateLayoutTree:
		top.DidPerformLayout = true
	}
}

func timerID(e *Event) string {
	if s := e.DataString("timerId"); s != "" {
		return s
	}
	if f, ok := e.DataFloat("timerId"); ok {
		return formatFloat(f)
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
