// Package domainerrors provides the coded error taxonomy shared by services
// and the HTTP layer. A code classifies an error for transport mapping; the
// message stays human-oriented and may be surfaced on 4xx responses.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeBadRequest marks input-validation failures. Detected before any
	// collaborator round-trip; never retried.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks ledger-reported absence of a vulnerability or
	// version.
	CodeNotFound Code = "not_found"
	// CodeConflict marks ledger-enforced uniqueness violations.
	CodeConflict Code = "conflict"
	// CodeUnavailable marks an unreachable external collaborator.
	CodeUnavailable Code = "unavailable"
	// CodeInternal covers unexpected failures, including contract-level
	// reverts not modeled by the other codes.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. It wraps an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with a message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to a cause, preserving the chain.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the chain's code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the coded message, or empty for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
