// Package errors provides coded domain errors for the staging service.
//
// Callers branch on the code, never on the message:
//
//	res, err := coordinator.Commit(ctx, pending, payload)
//	if errors.Is(err, errors.ErrStaleSession) {
//	    // the caller must Prepare again
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeUpstreamUnavailable:
//	        // retryable
//	    case errors.CodeNotFoundUpstream:
//	        // give up
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
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeValidation          Code = "VALIDATION"
	CodeConflict            Code = "CONFLICT"
	CodeInternal            Code = "INTERNAL"
	CodeNotFoundUpstream    Code = "NOT_FOUND_UPSTREAM"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeStaleSession        Code = "STALE_SESSION"
	CodeStoreFailure        Code = "STORE_FAILURE"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeNotFoundUpstream:
		return http.StatusNotFound
	case CodeConflict, CodeStaleSession:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may repeat the failed call unchanged.
func (c Code) Retryable() bool {
	return c == CodeUpstreamUnavailable
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
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict            = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal            = &Error{Code: CodeInternal, Message: "internal error"}
	ErrNotFoundUpstream    = &Error{Code: CodeNotFoundUpstream, Message: "not found in external catalog"}
	ErrUpstreamUnavailable = &Error{Code: CodeUpstreamUnavailable, Message: "external catalog unavailable"}
	ErrStaleSession        = &Error{Code: CodeStaleSession, Message: "pending action is stale"}
	ErrStoreFailure        = &Error{Code: CodeStoreFailure, Message: "store failure"}
)

// EntityRef names the entity an error is about.
// It is the Details payload for upstream and store errors.
type EntityRef struct {
	Kind        string `json:"kind"`
	ID          string `json:"id,omitempty"`
	ExternalKey string `json:"external_key,omitempty"`
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// StaleSession creates a stale session error.
func StaleSession(msg string) *Error {
	return &Error{Code: CodeStaleSession, Message: msg}
}

// NotFoundUpstream reports that the external catalog has no record for key.
func NotFoundUpstream(kind, key string, cause error) *Error {
	return &Error{
		Code:    CodeNotFoundUpstream,
		Message: fmt.Sprintf("%s %s not found in external catalog", kind, key),
		Details: EntityRef{Kind: kind, ExternalKey: key},
		cause:   cause,
	}
}

// UpstreamUnavailable reports a transient catalog failure for key.
func UpstreamUnavailable(kind, key string, cause error) *Error {
	return &Error{
		Code:    CodeUpstreamUnavailable,
		Message: fmt.Sprintf("fetch %s %s from external catalog", kind, key),
		Details: EntityRef{Kind: kind, ExternalKey: key},
		cause:   cause,
	}
}

// StoreFailure wraps a persistence error for the entity named by ref.
func StoreFailure(op string, ref EntityRef, cause error) *Error {
	return &Error{
		Code:    CodeStoreFailure,
		Message: op,
		Details: ref,
		cause:   cause,
	}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
