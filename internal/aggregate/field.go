package aggregate

import (
	"github.com/checkmateLL/F1LiveDashboard-New/internal/sources"
)

type Requirement int

const (
	Skip Requirement = iota
	Optional
	Required
)

func (r Requirement) String() string {
	switch r {
	case Skip:
		return "skip"
	case Optional:
		return "optional"
	case Required:
		return "required"
	default:
		return "unknown"
	}
}

// ParseRequirement accepts skip, optional or required. An empty string is
// the given fallback.
func ParseRequirement(s string, fallback Requirement) (Requirement, error) {
	switch s {
	case "":
		return fallback, nil
	case "skip":
		return Skip, nil
	case "optional":
		return Optional, nil
	case "required":
		return Required, nil
	default:
		return Skip, ErrInvalidSpec
	}
}

type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusNotFound    Status = "not_found"
	StatusSkipped     Status = "skipped"
)

// Field is one part of a composite result. Value is set only when the status
// is available; otherwise Reason says why.
type Field[T any] struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Value  *T     `json:"value,omitempty"`

	err error
}

func available[T any](value T) Field[T] {
	return Field[T]{Status: StatusAvailable, Value: &value}
}

func skipped[T any]() Field[T] {
	return Field[T]{Status: StatusSkipped}
}

func unavailableField[T any](reason string, err error) Field[T] {
	return Field[T]{Status: StatusUnavailable, Reason: reason, err: err}
}

func notFoundField[T any](reason string) Field[T] {
	return Field[T]{Status: StatusNotFound, Reason: reason}
}

// fromSource turns a data source failure into a field.
func fromSource[T any](err error) Field[T] {
	if sources.KindOf(err) == sources.NotFound {
		return notFoundField[T](err.Error())
	}

	return unavailableField[T](err.Error(), err)
}

// mirror copies the status of a field another one depends on.
func mirror[T, U any](from Field[U], reason string) Field[T] {
	switch from.Status {
	case StatusNotFound:
		return notFoundField[T](reason)
	default:
		return unavailableField[T](reason, from.err)
	}
}

func (f Field[T]) Available() bool {
	return f.Status == StatusAvailable
}

// Err is the failure behind an unavailable field.
func (f Field[T]) Err() error {
	return f.err
}
