// Package apperror defines the error kinds the persistence core surfaces to its callers.
//
// Every typed error is an *AppError wrapping one of the sentinel values below, so callers
// branch with errors.Is and read the human-readable message with errors.As:
//
//	if errors.Is(err, apperror.ErrDependents) {
//	    // "cannot delete, still referenced"
//	}
//
// Anything that is NOT an *AppError is a storage failure (driver error, broken connection,
// unexpected constraint) and is reported to end users generically.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrDependents = errors.New("has dependents")

	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that no row matched key (an id or a name).
func NotFound(resource string, key any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness clash, e.g. a second allergy named "Gluten".
func Conflict(resource string, key any) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %v already exists", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// HasDependents reports a remove that was refused because other rows still
// reference the entity through a foreign key. Nothing was deleted.
func HasDependents(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrDependents,
		Message: fmt.Sprintf("cannot delete %s %d: still referenced", resource, id),
	}
}

// Unauthorized reports failed credentials. The message never says whether the
// name or the password was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
