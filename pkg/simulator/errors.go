package simulator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSimulationStall is the sentinel matched by every SimulationStallError
var ErrSimulationStall = errors.New("simulation stalled")

// SimulationStallError reports nodes that could never be scheduled, either
// because their dependencies never complete or because the event budget
// ran out first.
type SimulationStallError struct {
	Reason    string
	SimTime   float64
	Completed int
	Total     int
	Pending   []string // IDs of unfinished nodes in discovery order
}

func (e *SimulationStallError) Error() string {
	pending := e.Pending
	suffix := ""
	if len(pending) > 5 {
		pending = pending[:5]
		suffix = ", ..."
	}
	return fmt.Sprintf("simulation stalled at %.1fms (%s): %d/%d nodes complete, pending [%s%s]",
		e.SimTime, e.Reason, e.Completed, e.Total, strings.Join(pending, ", "), suffix)
}

// Is makes errors.Is(err, ErrSimulationStall) hold
func (e *SimulationStallError) Is(target error) bool {
	return target == ErrSimulationStall
}

// IsStall checks whether err is a simulation stall
func IsStall(err error) bool {
	return errors.Is(err, ErrSimulationStall)
}
