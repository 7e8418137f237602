package graph

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrCycle               = errors.New("dependency cycle")
	ErrUnresolvedReference = errors.New("unresolved structural reference")
	ErrNoRoot              = errors.New("no root document request")
	ErrInvalidRoot         = errors.New("root has incoming dependency")
	ErrOrphanNode          = errors.New("node has no dependency")
)

// GraphConstructionError reports malformed or cyclic builder input. It is
// not retryable without corrected input, except that ErrUnresolvedReference
// may be retried in relaxed mode.
type GraphConstructionError struct {
	Op      string // builder step, e.g. "link-initiator", "validate"
	NodeID  string // offending node, if any
	Cause   error
	Context string
}

// Error implements the error interface.
func (e *GraphConstructionError) Error() string {
	msg := "graph " + e.Op
	if e.NodeID != "" {
		msg += " " + e.NodeID
	}
	if e.Context != "" {
		msg += fmt.Sprintf(" (%s)", e.Context)
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphConstructionError) Unwrap() error {
	return e.Cause
}

func constructionError(op, nodeID string, cause error, context string) error {
	return &GraphConstructionError{Op: op, NodeID: nodeID, Cause: cause, Context: context}
}

// IsConstructionError reports whether err came from the graph builder
func IsConstructionError(err error) bool {
	var gce *GraphConstructionError
	return errors.As(err, &gce)
}
