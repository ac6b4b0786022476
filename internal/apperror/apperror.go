// Package apperror defines the error taxonomy shared by every layer.
//
// Each constructor returns an *AppError wrapping one of the sentinel errors
// below, so callers branch with errors.Is and handlers pull the human-readable
// message out with errors.As. The HTTP mapping lives in internal/handler.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no session, or a session token that failed verification.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means an authenticated caller asked for another identity's private data.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized means the requester does not own the resource it tried to mutate.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	// ErrInvalidArgument covers malformed pagination, identifiers and payloads.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict means a conditional write lost a race with a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrStorage wraps failures of the persistence engine.
	ErrStorage = errors.New("storage error")
)

// FieldError describes one invalid payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error        // sentinel
	Message string       // Human-readable error message
	Field   string       // Optional: field causing the error
	Fields  []FieldError // Optional: every invalid field, for payload validation
	cause   error        // Optional: underlying error (storage failures)
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

// Public returns the message safe to show to API clients.
func (e *AppError) Public() string {
	return e.Message
}

func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
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

// Unauthorized reports an ownership mismatch on a write.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func InvalidArgument(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidArgument,
		Message: message,
		Field:   field,
	}
}

// InvalidFields reports several invalid payload fields at once.
func InvalidFields(fields []FieldError) *AppError {
	e := &AppError{
		Err:     ErrInvalidArgument,
		Message: "request validation failed",
		Fields:  fields,
	}
	if len(fields) == 1 {
		e.Field = fields[0].Field
		e.Message = fields[0].Message
	}
	return e
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %s was modified concurrently", resource, id),
	}
}

// Storage wraps a persistence failure. The cause is kept for logs and
// errors.Is, but Public never exposes it.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: op + " failed",
		cause:   cause,
	}
}
