// Package schedule implements the scheduling core: availability
// resolution, conflict detection and the booking lifecycle state machine.
// Everything in this package is a pure computation over values passed in;
// persistence and transport live elsewhere.
package schedule

import (
	"errors"
	"fmt"
)

// Kind classifies a scheduling failure.  The set is closed: handlers map
// each kind to exactly one HTTP status and callers switch on it instead
// of matching error strings.
type Kind int

const (
	// KindValidation marks malformed input (timestamps, timezones, enums).
	KindValidation Kind = iota + 1
	// KindAuthorization marks a role or ownership mismatch.
	KindAuthorization
	// KindNotFound marks a missing resource.
	KindNotFound
	// KindConflict marks a lost availability race, a duplicate
	// confirmation attempt or a passed cancellation cutoff.
	KindConflict
	// KindUpstream marks a store or notification-provider failure.
	KindUpstream
)

// Error is the tagged error returned by the scheduling core.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, kept for operator diagnosis
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Authorizationf builds a KindAuthorization error.
func Authorizationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a store or provider failure.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// KindOf extracts the kind from err.  Unknown errors are treated as
// upstream failures so they surface as 500 without leaking detail.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUpstream
}
