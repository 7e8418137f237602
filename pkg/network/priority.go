package network

import (
	"encoding/json"
	"fmt"
)

// Priority is the browser-assigned fetch priority. Higher values are
// dispatched first by the simulator.
type Priority int

const (
	PriorityVeryLow Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityVeryHigh
)

var priorityNames = [...]string{"VeryLow", "Low", "Medium", "High", "VeryHigh"}

// String returns the Chrome name of the priority
func (p Priority) String() string {
	if p < PriorityVeryLow || p > PriorityVeryHigh {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority converts a Chrome priority name. Unknown names map to Low,
// the priority Chrome assigns to requests it has no hint for.
func ParsePriority(s string) Priority {
	for i, name := range priorityNames {
		if name == s {
			return Priority(i)
		}
	}
	return PriorityLow
}

// MarshalJSON encodes the priority by name
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either the Chrome name or the ordinal
func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = ParsePriority(name)
		return nil
	}
	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return fmt.Errorf("priority: %w", err)
	}
	if ordinal < int(PriorityVeryLow) || ordinal > int(PriorityVeryHigh) {
		return fmt.Errorf("priority: ordinal %d out of range", ordinal)
	}
	*p = Priority(ordinal)
	return nil
}
