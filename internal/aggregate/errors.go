package aggregate

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAggregationFailed = errors.New("aggregate: a required source is unavailable")
	ErrInvalidSpec       = errors.New("aggregate: invalid query")
)

// Sub-source names, in the order required failures are reported.
const (
	SourceDB        = "db"
	SourceTelemetry = "telemetry"
	SourceWeather   = "weather"
)

// AggregationFailedError names the first required sub-source that was
// unavailable.
type AggregationFailedError struct {
	Missing string
	Cause   error
}

func (e *AggregationFailedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("aggregate: required source %s is unavailable", e.Missing)
	}

	return fmt.Sprintf("aggregate: required source %s is unavailable: %s", e.Missing, e.Cause)
}

func (e *AggregationFailedError) Unwrap() error {
	return e.Cause
}

func (e *AggregationFailedError) Is(target error) bool {
	return target == ErrAggregationFailed
}
