// Package errors provides the domain errors returned by ffserve services.
//
// Services return typed errors and handlers map them to HTTP responses by code:
//
//	if _, err := svc.AuthorStories(ctx, id); errors.Is(err, errors.ErrNotFound) {
//	    // 404
//	}
//
//	var fetchErr *errors.Error
//	if errors.As(err, &fetchErr) && fetchErr.Code == errors.CodeFetchFailed {
//	    details := fetchErr.Details.(errors.FetchFailureDetails)
//	    _ = details.StoryURL
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

const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeValidation  Code = "VALIDATION"
	CodeInvalidSort Code = "INVALID_SORT"
	CodeFetchFailed Code = "FETCH_FAILED"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeInvalidSort:
		return http.StatusBadRequest
	case CodeFetchFailed:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

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

// GetStatus implements huma.StatusError so handlers can return domain errors directly.
func (e *Error) GetStatus() int {
	return e.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// FetchFailureDetails tells the user where to look when a background download fails.
type FetchFailureDetails struct {
	StoryURL  string `json:"story_url"`
	AuthorURL string `json:"author_url"`
	Cause     string `json:"cause"`
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInvalidSort = &Error{Code: CodeInvalidSort, Message: "invalid sort key"}
	ErrFetchFailed = &Error{Code: CodeFetchFailed, Message: "fetch failed"}
	ErrInternal    = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidSort reports a sort key outside the supported set.
func InvalidSort(key string, allowed []string) *Error {
	return &Error{
		Code:    CodeInvalidSort,
		Message: fmt.Sprintf("unknown sort key %q", key),
		Details: map[string]any{"sort": key, "allowed": allowed},
	}
}

// FetchFailed surfaces a failed background download together with the remote pages involved.
func FetchFailed(storyURL, authorURL, cause string) *Error {
	return &Error{
		Code:    CodeFetchFailed,
		Message: fmt.Sprintf("could not download story %s", storyURL),
		Details: FetchFailureDetails{StoryURL: storyURL, AuthorURL: authorURL, Cause: cause},
	}
}

// Internalf creates an internal error with formatted message.
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
