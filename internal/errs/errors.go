// Package errs defines the typed failure surface shared by every public
// operation in agenticmemory. It is deliberately small: the store has no
// retry policy and no severity taxonomy, so the error type carries only
// what callers actually need to branch on (the Kind) plus enough context
// to log the failure.
package errs

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure categories a store operation can return.
type Kind string

const (
	// DimensionMismatch is returned when a vector's length does not equal
	// the store's configured dimension.
	DimensionMismatch Kind = "dimension_mismatch"
	// CapacityExceeded is returned when the approximate index has reached
	// its configured max_elements.
	CapacityExceeded Kind = "capacity_exceeded"
	// IoError wraps any filesystem read/write/rename/flush failure.
	IoError Kind = "io_error"
	// MalformedSnapshot is returned when a snapshot or log line fails to
	// parse, or its dim disagrees with the target store.
	MalformedSnapshot Kind = "malformed_snapshot"
	// NotFound is returned when a load/open targets a path that was
	// expected to already exist.
	NotFound Kind = "not_found"
	// InvalidArgument is returned for malformed options: zero dim,
	// negative max_elements, or contradictory filters.
	InvalidArgument Kind = "invalid_argument"
)

// Error is the concrete error type returned by every public operation.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "Store.Query"
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind. This lets
// callers write errors.Is(err, errs.New(errs.DimensionMismatch, "", "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error with no underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap constructs an *Error around an existing cause.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from err, returning "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
