package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

var (
	// ErrNoNavigationStart means the trace cannot anchor any metric
	ErrNoNavigationStart = errors.New("trace has no navigation start marker")
	ErrEmptyTrace        = errors.New("trace contains no events")
)

// Trace is an ordered list of events from one page load. ID identifies the
// trace for memoization.
type Trace struct {
	ID     uuid.UUID `json:"id"`
	Events []Event   `json:"traceEvents"`
}

// New wraps events in a Trace with a fresh identity
func New(events []Event) *Trace {
	return &Trace{ID: uuid.New(), Events: events}
}

// Read decodes either {"traceEvents": [...]} or a bare event array.
func Read(r io.Reader) (*Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyTrace
	}

	if data[0] == '[' {
		var events []Event
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("decode trace: %w", err)
		}
		return New(events), nil
	}

	var wrapper struct {
		ID     string  `json:"id"`
		Events []Event `json:"traceEvents"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	t := New(wrapper.Events)
	if id, err := uuid.Parse(wrapper.ID); err == nil {
		t.ID = id
	}
	return t, nil
}
