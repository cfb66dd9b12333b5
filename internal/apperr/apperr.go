// Package apperr defines the error taxonomy shared by the call-session services
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Code string

const (
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeAuthentication Code = "AUTHENTICATION"
	CodeForbidden      Code = "FORBIDDEN"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeConfiguration  Code = "CONFIGURATION"
	CodeProvider       Code = "PROVIDER"
	CodeInternal       Code = "INTERNAL"
)

// Error is a classified failure. Reason is safe to show to callers; Err is not.
type Error struct {
	Code   Code
	Reason string
	// Missing lists configuration variable names (never values) for CodeConfiguration.
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func InvalidRequest(reason string) *Error { return New(CodeInvalidRequest, reason, nil) }

func Authentication(reason string, err error) *Error { return New(CodeAuthentication, reason, err) }

func Forbidden(reason string) *Error { return New(CodeForbidden, reason, nil) }

func NotFound(reason string) *Error { return New(CodeNotFound, reason, nil) }

func Conflict(reason string, err error) *Error { return New(CodeConflict, reason, err) }

func Provider(reason string, err error) *Error { return New(CodeProvider, reason, err) }

func Internal(reason string, err error) *Error { return New(CodeInternal, reason, err) }

// Configuration reports which variables are missing. Values are never included.
func Configuration(reason string, missing ...string) *Error {
	return &Error{Code: CodeConfiguration, Reason: reason, Missing: missing}
}

// CodeOf returns the classification of err, CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	switch CodeOf(err) {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Details returns the caller-visible detail string for err.
// Configuration errors list the missing variables; provider errors carry the
// provider message; everything else falls back to the reason.
func Details(err error) string {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return ""
	}
	switch e.Code {
	case CodeConfiguration:
		if len(e.Missing) > 0 {
			return "missing: " + strings.Join(e.Missing, ", ")
		}
	case CodeProvider:
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return e.Reason
}
