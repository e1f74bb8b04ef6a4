// Package llmerr defines the error vocabulary shared by the engine, worker,
// sampler and client façade packages.
//
// The shape follows modeld's internal/manager/errors.go: one exported
// *Error type whose Kind is checked through a predicate function, so
// callers write "if llmerr.Is(err, llmerr.UnknownHandle)" instead of
// matching on concrete types.
package llmerr

import "fmt"

// Kind identifies one of the closed set of failure modes the core can
// produce. New kinds are never added silently; every kind must be
// documented alongside the others below.
type Kind string

const (
	NativeLoadFailure   Kind = "native_load_failure"
	NativeAllocFailure  Kind = "native_alloc_failure"
	NativeCallFailure   Kind = "native_call_failure"
	UnknownHandle       Kind = "unknown_handle"
	HandleStillReferenced Kind = "handle_still_referenced"
	InvalidArgument     Kind = "invalid_argument"
	StateViolation      Kind = "state_violation"
	SamplerMisuse       Kind = "sampler_misuse"
	UnknownLogLevel     Kind = "unknown_log_level"
)

// Error is the concrete error type returned by every control in the core.
// Status carries the native return code for NativeCallFailure; it is zero
// for every other kind.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NativeCall constructs a NativeCallFailure carrying the native status code.
func NativeCall(message string, status int) *Error {
	return &Error{Kind: NativeCallFailure, Message: message, Status: status}
}

// Is reports whether err is an *Error of the given kind. It does not use
// errors.As so that a nil err is handled without an extra branch at call
// sites.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
