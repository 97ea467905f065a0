// Package errors provides coded errors for the ingestion pipeline.
//
// Every failure that crosses a component boundary carries a Code so that
// orchestration can decide between retry, skip and abort without string
// matching:
//
//	payload, err := client.Fetch(ctx, path, params)
//	switch errors.KindOf(err) {
//	case errors.CodeNotFound:
//	    // candidate no longer valid, skip
//	case errors.CodeExhausted:
//	    // transient failure that outlived the retry budget, count as item error
//	}
//
// Matching with errors.Is works on the code alone:
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
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

// Code represents a machine-readable error kind.
type Code string

// Error codes used throughout the pipeline.
const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeTransient   Code = "TRANSIENT"
	CodeExhausted   Code = "EXHAUSTED"
	CodeMalformed   Code = "MALFORMED"
	CodeFiltered    Code = "FILTERED"
	CodeBatchWrite  Code = "BATCH_WRITE"
	CodeConfig      Code = "CONFIG"
	CodeValidation  Code = "VALIDATION"
	CodeInternal    Code = "INTERNAL"
)

// Retryable reports whether an operation failing with this code may succeed
// when attempted again.
func (c Code) Retryable() bool {
	return c == CodeRateLimited || c == CodeTransient
}

// FromHTTPStatus maps an upstream HTTP status to an error code.
// Success statuses map to the empty code.
func FromHTTPStatus(status int) Code {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return CodeTransient
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CodeConfig
	default:
		return CodeMalformed
	}
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

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrRateLimited = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrTransient   = &Error{Code: CodeTransient, Message: "transient upstream failure"}
	ErrExhausted   = &Error{Code: CodeExhausted, Message: "retries exhausted"}
	ErrMalformed   = &Error{Code: CodeMalformed, Message: "malformed payload"}
	ErrFiltered    = &Error{Code: CodeFiltered, Message: "filtered"}
	ErrBatchWrite  = &Error{Code: CodeBatchWrite, Message: "batch write failed"}
	ErrConfig      = &Error{Code: CodeConfig, Message: "configuration error"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal    = &Error{Code: CodeInternal, Message: "internal error"}
)

// KindOf returns the code of the first *Error in err's chain.
// Returns the empty code for nil and CodeInternal for uncoded errors.
func KindOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Config creates a configuration error.
func Config(msg string) *Error {
	return &Error{Code: CodeConfig, Message: msg}
}

// Configf creates a configuration error with formatted message.
func Configf(format string, args ...any) *Error {
	return &Error{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
