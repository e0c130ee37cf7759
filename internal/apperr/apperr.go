// Package apperr defines the typed errors the booking core returns across its
// boundary. Every error carries a stable machine-readable code so transports
// can map it deterministically without parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeConfigNotFound         Code = "CONFIG_NOT_FOUND"
	CodePastDate               Code = "PAST_DATE"
	CodeAdvanceWindowExceeded  Code = "ADVANCE_WINDOW_EXCEEDED"
	CodeStaffUnavailable       Code = "STAFF_UNAVAILABLE"
	CodeResourceUnavailable    Code = "RESOURCE_UNAVAILABLE"
	CodeNoAvailability         Code = "NO_AVAILABILITY"
	CodeNotFound               Code = "NOT_FOUND"
	CodeInactiveEntity         Code = "INACTIVE_ENTITY"
	CodeSlotUnavailable        Code = "SLOT_UNAVAILABLE"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeOverrideConflict       Code = "OVERRIDE_CONFLICT"
	CodeInvalidArgument        Code = "INVALID_ARGUMENT"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeInternal               Code = "INTERNAL"
)

// Error is the typed error value produced by the core.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code, so sentinel
// values below work with errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfigNotFound         = &Error{Code: CodeConfigNotFound, Message: "business configuration not found"}
	ErrPastDate               = &Error{Code: CodePastDate, Message: "requested time is in the past"}
	ErrAdvanceWindowExceeded  = &Error{Code: CodeAdvanceWindowExceeded, Message: "requested time is beyond the advance booking window"}
	ErrStaffUnavailable       = &Error{Code: CodeStaffUnavailable, Message: "requested staff member is not available"}
	ErrResourceUnavailable    = &Error{Code: CodeResourceUnavailable, Message: "requested resource is not available"}
	ErrNoAvailability         = &Error{Code: CodeNoAvailability, Message: "no availability for the requested time"}
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInactiveEntity         = &Error{Code: CodeInactiveEntity, Message: "entity is inactive"}
	ErrSlotUnavailable        = &Error{Code: CodeSlotUnavailable, Message: "slot is no longer available"}
	ErrConcurrentModification = &Error{Code: CodeConcurrentModification, Message: "record was modified concurrently"}
	ErrOverrideConflict       = &Error{Code: CodeOverrideConflict, Message: "override would discard live bookings"}
	ErrInvalidArgument        = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrInvalidTransition      = &Error{Code: CodeInvalidTransition, Message: "invalid status transition"}
)

// New builds an error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error with the given code that keeps err as its cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound is shorthand for a NOT_FOUND error naming the missing thing.
func NotFound(what string, id string) *Error {
	return New(CodeNotFound, "%s %q not found", what, id)
}

// InvalidArgument is shorthand for an INVALID_ARGUMENT error.
func InvalidArgument(format string, args ...any) *Error {
	return New(CodeInvalidArgument, format, args...)
}

// CodeOf extracts the code from err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the human message for typed errors and a generic message
// otherwise, so storage error text never leaks to callers.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
