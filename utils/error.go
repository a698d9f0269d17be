package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrLockBusy means another actor currently holds the run-level lock.
// Callers surface it as a retryable conflict; it is never auto-retried here.
var ErrLockBusy = errors.New("run lock busy")

// ErrConcurrencyConflict means the optimistic version check failed on save:
// the run changed between read and write.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ValidationError carries a stable machine-readable reason plus a human
// message. Reasons are part of the API contract (clients branch on them).
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func NewValidationError(reason string, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DependencyError wraps failures of external systems (Redis, MySQL, Pub/Sub)
// so handlers can map them to 503 instead of 500.
type DependencyError struct {
	System string
	Err    error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s: %v", e.System, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func NewDependencyError(system string, err error) *DependencyError {
	return &DependencyError{System: system, Err: err}
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
