package stage

import (
	"errors"
	"fmt"

	"github.com/db-inlee/paper-digest-agent/internal/resilience"
)

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	// SchemaViolation means the inference output failed structural
	// validation. Never retried.
	SchemaViolation ErrorKind = "schema_violation"
	// Unavailable means the inference transport failed. Retryable up to a
	// small bound.
	Unavailable ErrorKind = "unavailable"
)

// Error is the only error type a stage invocation surfaces. The state
// machine branches on Kind and Retryable; nothing below it raises uncaught.
type Error struct {
	Stage     string
	Kind      ErrorKind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewSchemaViolation wraps a validation failure for the named stage.
func NewSchemaViolation(stage string, err error) *Error {
	return &Error{Stage: stage, Kind: SchemaViolation, Retryable: false, Err: err}
}

// NewUnavailable wraps a transport failure. Retryable tracks whether the
// underlying cause is transient.
func NewUnavailable(stage string, err error) *Error {
	return &Error{Stage: stage, Kind: Unavailable, Retryable: resilience.IsTransient(err), Err: err}
}

// AsError extracts a stage Error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable reports whether err is a stage error marked retryable.
func IsRetryable(err error) bool {
	se, ok := AsError(err)
	return ok && se.Retryable
}
