package sources

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	// Unavailable is transient: the source could not be reached, timed out,
	// was rate limited or returned something undecodable.
	Unavailable Kind = iota
	// NotFound means the source answered and has no data for the key.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

var (
	ErrUnavailable = errors.New("sources: source unavailable")
	ErrNotFound    = errors.New("sources: no data for key")
	ErrInvalidKey  = errors.New("sources: invalid key")
)

type SourceError struct {
	Source string
	Kind   Kind
	Cause  error
}

func (e *SourceError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("sources: %s %s", e.Source, e.Kind)
	}

	return fmt.Sprintf("sources: %s %s: %s", e.Source, e.Kind, e.Cause)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrNotFound)
// holds for any NotFound SourceError.
func (e *SourceError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == Unavailable
	case ErrNotFound:
		return e.Kind == NotFound
	default:
		return false
	}
}

func unavailable(source string, cause error) error {
	return &SourceError{Source: source, Kind: Unavailable, Cause: cause}
}

func notFound(source string, cause error) error {
	return &SourceError{Source: source, Kind: NotFound, Cause: cause}
}

// KindOf reports the kind of a SourceError. Errors that did not come from a
// source are treated as Unavailable.
func KindOf(err error) Kind {
	var sourceErr *SourceError

	if errors.As(err, &sourceErr) {
		return sourceErr.Kind
	}

	return Unavailable
}
