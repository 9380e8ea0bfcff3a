// Package apperror defines the error kinds shared by every layer.
//
// The repository classifies raw storage errors into one of these kinds,
// the service wraps them with context, and the handler maps the kind to an
// HTTP status. Nothing above the repository ever inspects a driver error.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrConnection = errors.New("connection failure")
)

// Kind is the coarse classification of an error, independent of its origin.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindConnectionFailure
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConnectionFailure:
		return "connection_failure"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

type AppError struct {
	Err     error  // sentinel, one of the Err* vars above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying driver error, never shown to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is works for either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %d", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. cause may be nil.
func Conflict(resource string, cause error) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists", resource),
		Cause:   cause,
	}
}

// ConnectionFailed reports that the store could not be reached or a
// connection could not be acquired from the pool.
func ConnectionFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrConnection,
		Message: "database connection failed",
		Cause:   cause,
	}
}

// KindOf classifies err. A nil error and any error without a known
// sentinel in its chain are KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrConnection):
		return KindConnectionFailure
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindUnknown
	}
}
