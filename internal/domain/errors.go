package domain

import "fmt"

// ErrorKind classifies domain errors so the transport layer can map them to
// status codes without inspecting error strings.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindUnavailable
)

// Error is the domain error type shared across the client core.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewValidationError creates a validation error with the given message.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewNotFoundError creates a not-found error for the given entity and key.
func NewNotFoundError(entity, key string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, key)}
}

// NewConflictError creates a conflict error with the given message.
func NewConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewUnavailableError creates an error for a temporarily unavailable dependency.
func NewUnavailableError(msg string) *Error {
	return &Error{Kind: KindUnavailable, Message: msg}
}
