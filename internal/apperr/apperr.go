// Package apperr defines the error classes that cross the service boundary.
// Repositories and the chat service return these; handlers map codes to HTTP
// statuses. Anything without a code is treated as a transient 500.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation Code = "validation"
	CodePermission Code = "permission"
	CodeExpired    Code = "expired"
	CodeNotFound   Code = "not_found"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func Validation(msg string) error {
	return &Error{Code: CodeValidation, Message: msg}
}

func Validationf(format string, v ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, v...)}
}

func Permission(msg string) error {
	return &Error{Code: CodePermission, Message: msg}
}

func Expired(msg string) error {
	return &Error{Code: CodeExpired, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// CodeOf extracts the class of err, unwrapping as needed. Empty for errors
// that carry no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MessageOf returns the client-facing message, or a generic fallback for
// uncoded errors so internals never leak to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
