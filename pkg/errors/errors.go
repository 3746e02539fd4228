// Package errors defines the structured error type shared by every layer of the
// validation service. Transport adapters translate these into gRPC statuses or
// HTTP responses; nothing below the transport layer knows about either.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an AppError
type Code string

const (
	// CodeInvalidArgument marks a request that can never succeed as sent
	CodeInvalidArgument Code = "invalid_argument"

	// CodeInternal marks a server side failure. Its details never reach callers.
	CodeInternal Code = "internal"

	// CodeRateLimited marks a request rejected by the rate limiter
	CodeRateLimited Code = "rate_limited"

	// CodeUnavailable marks a dependency that is not ready yet
	CodeUnavailable Code = "unavailable"

	// CodeNotFound marks a missing resource on the ops surface
	CodeNotFound Code = "not_found"
)

// ================================================================================
// Error Interface
// ================================================================================

// AppError represents a structured error with additional metadata
type AppError interface {
	error

	// Code returns the error classification
	Code() Code

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Message returns the caller facing message
	Message() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) AppError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) AppError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Implementation
// ================================================================================

type baseError struct {
	code       Code
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// Error includes the cause so that logs carry the full chain.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Code() Code                       { return e.code }
func (e *baseError) HTTPStatus() int                  { return e.httpStatus }
func (e *baseError) Message() string                  { return e.message }
func (e *baseError) Unwrap() error                    { return e.cause }
func (e *baseError) Metadata() map[string]interface{} { return e.metadata }

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) AppError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Is matches another AppError by code, so errors.Is(err, ErrInternal("")) works
// as a class check.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return t.code == e.code && (t.message == "" || t.message == e.message)
}

// ================================================================================
// Constructors
// ================================================================================

// NewError creates a new AppError with the specified parameters
func NewError(code Code, httpStatus int, message string) AppError {
	return &baseError{
		code:       code,
		httpStatus: httpStatus,
		message:    message,
	}
}

// ErrInvalidArgument creates an invalid_argument error
func ErrInvalidArgument(message string) AppError {
	return NewError(CodeInvalidArgument, http.StatusBadRequest, message)
}

// ErrInternal creates an internal error
func ErrInternal(message string) AppError {
	return NewError(CodeInternal, http.StatusInternalServerError, message)
}

// ErrRateLimited creates a rate_limited error
func ErrRateLimited(message string) AppError {
	return NewError(CodeRateLimited, http.StatusTooManyRequests, message)
}

// ErrUnavailable creates an unavailable error
func ErrUnavailable(message string) AppError {
	return NewError(CodeUnavailable, http.StatusServiceUnavailable, message)
}

// ErrNotFound creates a not_found error
func ErrNotFound(message string) AppError {
	return NewError(CodeNotFound, http.StatusNotFound, message)
}

// Wrap attaches cause to a new internal error. A nil cause yields nil.
func Wrap(cause error, message string) AppError {
	if cause == nil {
		return nil
	}
	return ErrInternal(message).WithCause(cause)
}

// ================================================================================
// Helpers
// ================================================================================

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code Code) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code() == code
}

// Is and As re-export the standard helpers so callers need a single import.
var (
	Is  = stderrors.Is
	As  = stderrors.As
	New = stderrors.New
)
