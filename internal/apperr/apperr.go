// Package apperr defines the typed failures surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports an input rejected at the API boundary.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError for a single field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown identifier. It is distinct from an empty
// result list.
type NotFoundError struct {
	Kind string
	ID   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Kind, e.ID)
}

// AlreadyFinalizedError reports a second finalization of an answer.
type AlreadyFinalizedError struct {
	AnswerID   int64
	FinalScore int
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("answer %d already finalized with score %d", e.AnswerID, e.FinalScore)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAlreadyFinalized reports whether err wraps an *AlreadyFinalizedError.
func IsAlreadyFinalized(err error) bool {
	var af *AlreadyFinalizedError
	return errors.As(err, &af)
}
