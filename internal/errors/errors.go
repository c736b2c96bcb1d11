package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Conflict causes, so callers can render a specific message.
const (
	ConflictRoom       = "room"
	ConflictInstructor = "instructor"
	ConflictReserved   = "reserved"
	ConflictEnrollment = "enrollment"
	ConflictCapacity   = "capacity"
)

// ValidationError is malformed input: missing fields, start >= end,
// a start time in the past, capacity exceeding the room.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError is a scheduling overlap. Cause says which kind of conflict
// was hit (room vs instructor vs reserved slot).
type ConflictError struct {
	Cause   string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflict(cause, message string) *ConflictError {
	return &ConflictError{Cause: cause, Message: message}
}

// NotFoundError: the referenced record does not exist or is soft-deleted.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func NewNotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// InvalidTokenError: a cancellation or session token failed verification.
type InvalidTokenError struct {
	Message string
}

func (e *InvalidTokenError) Error() string { return e.Message }

func NewInvalidToken(message string) *InvalidTokenError {
	return &InvalidTokenError{Message: message}
}

// HTTPStatus maps the error taxonomy to a response code. Anything outside
// the taxonomy is a server error and must not leak internals to the caller.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		conflict   *ConflictError
		notFound   *NotFoundError
		badToken   *InvalidTokenError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &badToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message safe to show the caller.
func UserMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "server error"
	}
	return err.Error()
}
