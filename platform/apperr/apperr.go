// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer middleware
// automatically maps them to appropriate HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., duplicate).
	KindConflict
	// KindForbidden indicates the action is not allowed for the caller.
	KindForbidden
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindTooManyRequests indicates the caller must back off (cooldowns, attempt caps).
	KindTooManyRequests
	// KindGone indicates a resource that existed but is no longer available.
	KindGone
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind for HTTP mapping and a stable
// machine-readable Code for API clients.
type Error struct {
	Kind    Kind
	Code    string // stable identifier, e.g. "illegal_transition"
	Message string
	Op      string // operation that failed (optional)
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is treats two apperr values with the same non-empty Code as equal, so
// callers can match sentinel errors with errors.Is after wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code != "" && e.Code == other.Code
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindGone:
		return http.StatusGone
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind, code, and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// WithOp returns a copy of the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	clone := *e
	clone.Op = op
	return &clone
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}
