package storage

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrPoolExhausted = errors.New("storage: no connection became idle before the acquire timeout")
	ErrPoolClosed    = errors.New("storage: pool is closed")
	ErrConnNotLent   = errors.New("storage: connection is not lent")
	ErrNotFound      = errors.New("storage: record not found")
	ErrLapsImmutable = errors.New("storage: laps of a completed session cannot be modified")
)

type PoolExhaustedError struct {
	Timeout time.Duration
	Size    int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("storage: all %d connections busy for %s", e.Size, e.Timeout)
}

func (e *PoolExhaustedError) Unwrap() error {
	return ErrPoolExhausted
}

// QueryFailedError wraps any failure reported by the storage layer.
type QueryFailedError struct {
	Op    string
	Query string
	Cause error
}

func (e *QueryFailedError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("storage: %s failed: %s", e.Op, e.Cause)
	}

	return fmt.Sprintf("storage: %s failed (%s): %s", e.Op, e.Query, e.Cause)
}

func (e *QueryFailedError) Unwrap() error {
	return e.Cause
}

// RowError is returned when a row is missing a required column or carries a
// value of the wrong type.
type RowError struct {
	Table  string
	Column string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("storage: invalid %s row: column %s %s", e.Table, e.Column, e.Reason)
}

func IsQueryFailed(err error) bool {
	var queryFailed *QueryFailedError

	return errors.As(err, &queryFailed)
}

var ErrInvalidLap = errors.New("storage: lap needs a driver, a positive lap number and a positive lap time")

var ErrInvalidResult = errors.New("storage: result needs a driver, a non-negative position and non-negative points")
