// Package errors provides the coded domain errors used by the licensing core.
//
// Usage:
//
//	// In services - return typed errors
//	if exists {
//	    return errors.DuplicateLicenseIDf("license %s already issued", id)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrStoreUnavailable) {
//	    // retry with backoff
//	}
//
//	// Or switch on the Code directly
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeInvalidRequest:
//	    case errors.CodeCorruptRecord:
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeNotFound           Code = "NOT_FOUND"
	CodeDuplicateLicenseID Code = "DUPLICATE_LICENSE_ID"
	CodeStoreUnavailable   Code = "STORE_UNAVAILABLE"
	CodeCorruptRecord      Code = "CORRUPT_RECORD"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateLicenseID:
		return http.StatusConflict
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether callers should retry an operation that failed with this code.
func (c Code) Retryable() bool {
	return c == CodeStoreUnavailable || c == CodeRateLimited
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrInvalidRequest     = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrDuplicateLicenseID = &Error{Code: CodeDuplicateLicenseID, Message: "license id already issued"}
	ErrStoreUnavailable   = &Error{Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrCorruptRecord      = &Error{Code: CodeCorruptRecord, Message: "corrupt record"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// InvalidRequest creates an invalid request error.
func InvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// InvalidRequestf creates an invalid request error with a formatted message.
func InvalidRequestf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// InvalidRequestWithDetails creates an invalid request error with per-field details.
func InvalidRequestWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg, Details: details}
}

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// DuplicateLicenseIDf creates a duplicate license id error with a formatted message.
func DuplicateLicenseIDf(format string, args ...any) *Error {
	return &Error{Code: CodeDuplicateLicenseID, Message: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps a storage failure.
func StoreUnavailable(err error, msg string) *Error {
	return &Error{Code: CodeStoreUnavailable, Message: msg, cause: err}
}

// CorruptRecord wraps a decoding failure for the given key.
func CorruptRecord(err error, key string) *Error {
	return &Error{
		Code:    CodeCorruptRecord,
		Message: "corrupt record " + key,
		Details: map[string]string{"key": key},
		cause:   err,
	}
}

// RateLimited creates a rate limited error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Internalf creates an internal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first domain error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
