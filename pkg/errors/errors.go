// Package errors provides structured error types for refreshd.
//
// Every failure raised while refreshing a bookmark is classified into one
// [Code]. The code is the stable discriminant used in log lines (the "kind"
// key) and decides how the refresh engine treats the failure:
//
//   - TRANSIENT_NETWORK: timeout, connection refused, DNS failure, 5xx.
//     Counted toward the record's consecutive failure count.
//   - PERMANENT_HTTP: 4xx (except 429) on the primary URL. Counted like a
//     transient failure but logged at a higher severity.
//   - RATE_LIMITED: the repository API answered 403/429. Not counted;
//     suppresses further repository calls for the rest of the tick.
//   - REPOSITORY_GONE: the repository endpoint answered 404/410. Not
//     counted; moves the record to repo_unavailable.
//   - PARSE_ERROR: malformed page or API response.
//   - STORE_ERROR: the persistence layer failed. Aborts only that write.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "unsupported scheme: %s", u.Scheme)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransientNetwork, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Refresh taxonomy
	ErrCodeTransientNetwork Code = "TRANSIENT_NETWORK"
	ErrCodePermanentHTTP    Code = "PERMANENT_HTTP"
	ErrCodeRateLimited      Code = "RATE_LIMITED"
	ErrCodeRepositoryGone   Code = "REPOSITORY_GONE"
	ErrCodeParse            Code = "PARSE_ERROR"
	ErrCodeStore            Code = "STORE_ERROR"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code       Code   // Machine-readable error code
	Message    string // Human-readable message
	StatusCode int    // HTTP status that produced the error, if any
	Cause      error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WithStatus records the HTTP status code that produced e and returns e.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// A *RateLimitedError anywhere in the chain matches ErrCodeRateLimited.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error carries no code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return ErrCodeRateLimited
	}
	return ""
}

// HTTPStatus returns the HTTP status code recorded on err, or 0.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// CountsAsFailure reports whether err should increment a record's
// consecutive failure count. Rate limiting, a vanished repository and
// store failures are not failures of the bookmarked URL.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	switch GetCode(err) {
	case ErrCodeRateLimited, ErrCodeRepositoryGone, ErrCodeStore:
		return false
	}
	return true
}

// FromHTTPStatus classifies a non-2xx response of the primary URL.
// 429 and 5xx are transient; every other 4xx is permanent.
func FromHTTPStatus(status int, url string) *Error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return New(ErrCodeTransientNetwork, "%s answered %d", url, status).WithStatus(status)
	case status >= 400:
		return New(ErrCodePermanentHTTP, "%s answered %d", url, status).WithStatus(status)
	default:
		return New(ErrCodeTransientNetwork, "%s answered unexpected status %d", url, status).WithStatus(status)
	}
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
