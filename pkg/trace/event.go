// Package trace models a browser performance trace and extracts the pieces
// the audit needs: navigation start, paint and layout-shift events, visual
// progress and the main-thread task tree.
package trace

// Event phases used by the processor
const (
	PhaseComplete = "X"
	PhaseInstant  = "I"
	PhaseInstantL = "i"
	PhaseMark     = "R"
	PhaseMetadata = "M"
)

// Event names the processor recognizes
const (
	EventNavigationStart    = "navigationStart"
	EventFirstPaint         = "firstPaint"
	EventFirstContentful    = "firstContentfulPaint"
	EventLCPCandidate       = "largestContentfulPaint::Candidate"
	EventLCPInvalidate      = "largestContentfulPaint::Invalidate"
	EventLayoutShift        = "LayoutShift"
	EventScreenshot         = "Screenshot"
	EventTracingStarted     = "TracingStartedInBrowser"
	EventFrameCommitted     = "FrameCommittedInBrowser"
	EventEvaluateScript     = "EvaluateScript"
	EventV8Compile          = "v8.compile"
	EventFunctionCall       = "FunctionCall"
	EventParseHTML          = "ParseHTML"
	EventParseStyleSheet    = "ParseAuthorStyleSheet"
	EventResourceSend       = "ResourceSendRequest"
	EventXHRReadyState      = "XHRReadyStateChange"
	EventTimerInstall       = "TimerInstall"
	EventTimerFire          = "TimerFire"
	EventLayout             = "Layout"
	EventUpdateLayoutTree   = "UpdateLayoutTree"
	EventPaint              = "Paint"
	EventScheduleStyleRecal = "ScheduleStyleRecalculation"
)

// Event is one entry of the Chrome trace event format. Timestamps and
// durations are microseconds.
type Event struct {
	Name      string         `json:"name"`
	Category  string         `json:"cat,omitempty"`
	Phase     string         `json:"ph"`
	Timestamp float64        `json:"ts"`
	Duration  float64        `json:"dur,omitempty"`
	ProcessID int            `json:"pid"`
	ThreadID  int            `json:"tid"`
	Args      map[string]any `json:"args,omitempty"`
}

// End returns the end timestamp in microseconds
func (e *Event) End() float64 {
	return e.Timestamp + e.Duration
}

// Frame returns args.frame, falling back to args.data.frame
func (e *Event) Frame() string {
	if f, ok := e.Args["frame"].(string); ok {
		return f
	}
	return e.DataString("frame")
}

// Data returns args.data as a map, or nil
func (e *Event) Data() map[string]any {
	d, _ := e.Args["data"].(map[string]any)
	return d
}

// DataString reads a string from args.data
func (e *Event) DataString(key string) string {
	s, _ := e.Data()[key].(string)
	return s
}

// DataFloat reads a number from args.data
func (e *Event) DataFloat(key string) (float64, bool) {
	return toFloat(e.Data()[key])
}

// DataBool reads a boolean from args.data
func (e *Event) DataBool(key string) bool {
	b, _ := e.Data()[key].(bool)
	return b
}

// ArgString reads a top-level args string, looking into args.beginData as well
func (e *Event) ArgString(key string) string {
	if s, ok := e.Args[key].(string); ok {
		return s
	}
	if begin, ok := e.Args["beginData"].(map[string]any); ok {
		s, _ := begin[key].(string)
		return s
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

type threadKey struct {
	pid, tid int
}

func (e *Event) thread() threadKey {
	return threadKey{pid: e.ProcessID, tid: e.ThreadID}
}
