package etl

import (
	"errors"
	"fmt"
	"strings"
)

// Validation failure kinds. Use errors.Is against a *ValidationError.
var (
	ErrMissingColumns      = errors.New("missing required columns")
	ErrNullValues          = errors.New("found missing values")
	ErrMalformedValue      = errors.New("malformed value")
	ErrInvalidPrice        = errors.New("found prices below minimum")
	ErrDuplicateTimestamps = errors.New("found duplicate timestamps")
)

// ValidationError describes the first rule a batch violated.
type ValidationError struct {
	Kind     error
	Columns  []string // MissingColumns
	Column   string   // NullValues, MalformedValue
	Row      int      // MalformedValue, zero-based
	MinPrice float64  // InvalidPrice
	Err      error    // MalformedValue conversion error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrMissingColumns:
		return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Columns, ", "))
	case ErrNullValues:
		return fmt.Sprintf("%v in column: %s", e.Kind, e.Column)
	case ErrMalformedValue:
		return fmt.Sprintf("%v in column %s at row %d: %v", e.Kind, e.Column, e.Row, e.Err)
	case ErrInvalidPrice:
		return fmt.Sprintf("%v (min_price %g)", e.Kind, e.MinPrice)
	default:
		return e.Kind.Error()
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Sink failure kinds. Use errors.Is against a *SinkError.
var (
	ErrConnectionFailed  = errors.New("connection failed")
	ErrTableCreateFailed = errors.New("table create failed")
	ErrWriteFailed       = errors.New("write failed")

	ErrInvalidTableName = errors.New("invalid table name")
	ErrSinkClosed       = errors.New("sink already closed")
)

// SinkError wraps a backend failure with the phase it happened in.
type SinkError struct {
	Kind    error
	Backend string
	Table   string
	Err     error
}

func (e *SinkError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v: %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v for table %s: %v", e.Backend, e.Kind, e.Table, e.Err)
}

func (e *SinkError) Is(target error) bool {
	return target == e.Kind
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// FetchError reports an unreachable source or unusable content.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch from %s failed with status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StageError is the terminal error of a pipeline run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
