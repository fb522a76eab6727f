// Package apperrors defines the error taxonomy shared by the store, the
// connection manager, the orchestration service and the HTTP layer.
package apperrors

import (
	"errors"
	"net/http"
)

// Code classifies an Error.
type Code int

const (
	// CodeUnknown is the zero value and never produced deliberately.
	CodeUnknown Code = iota
	// CodeValidation marks input that could not be canonicalized.
	CodeValidation
	// CodeUnavailable marks a connection that could not be opened or re-opened.
	CodeUnavailable
	// CodeStoreRejected marks a store call that executed but failed.
	CodeStoreRejected
	// CodeNotFound marks a read or delete that matched no row.
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "validation"
	case CodeUnavailable:
		return "unavailable"
	case CodeStoreRejected:
		return "store_rejected"
	case CodeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable classification
	Message string // Internal message for logs
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks. Any *Error with the same Code matches.
var (
	ErrValidation    = New(CodeValidation, "invalid input")
	ErrUnavailable   = New(CodeUnavailable, "store connection unavailable")
	ErrStoreRejected = New(CodeStoreRejected, "store rejected operation")
	ErrNotFound      = New(CodeNotFound, "not found")
)

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HTTPStatus maps err to the status code the HTTP layer responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
