// Package apperr defines the stable error-kind strings surfaced to clients
// in node_failed.kind and execution_error.error, and a small typed wrapper
// so callers can attach a kind to any underlying error without losing it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the stable error strings the wire protocol promises to
// callers. New kinds require updating the protocol documentation, not just
// this file.
type Kind string

const (
	InvalidGraph        Kind = "invalid-graph"
	ModelUnavailable    Kind = "model-unavailable"
	ModelTimeout        Kind = "model-timeout"
	SearchUnavailable   Kind = "search-unavailable"
	OperatorInvalidConf Kind = "operator-invalid-config"
	Cancelled           Kind = "cancelled"
	SchedulerStuck      Kind = "scheduler-stuck"
)

// Error pairs a stable Kind with a human-readable message and an optional
// underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error with the given kind, message, and cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise returns the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
