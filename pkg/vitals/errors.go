package vitals

import (
	"errors"
	"fmt"
)

// ErrMetricUnavailable means the input lacks what a metric needs. It is
// reported as an undefined value, never as an audit failure.
var ErrMetricUnavailable = errors.New("metric unavailable")

func unavailable(reason string) error {
	return fmt.Errorf("%w: %s", ErrMetricUnavailable, reason)
}

// IsUnavailable checks whether err means the metric has no value
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrMetricUnavailable)
}
