package serrors

import (
	"errors"
	"fmt"
)

// Kind is a marker interface implemented by all semantic error kinds created
// with NewKind. It distinguishes semantic categories from ordinary errors.
type Kind interface {
	error
	isKind()
}

// kind is the unexported sentinel implementation behind NewKind.
type kind struct{ s string }

func (k kind) Error() string { return k.s }
func (k kind) isKind()       {}

// NewKind creates a new semantic error kind sentinel with the given name.
// Kinds are comparable and matchable with errors.Is through the Error wrapper.
func NewKind(name string) Kind { return kind{s: name} }

// The default kinds cover the semantics this service needs. Transport layers
// map them onto their own status codes.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = NewKind("NOT_FOUND")
	// ErrBadRequest indicates the caller supplied invalid data.
	ErrBadRequest = NewKind("BAD_REQUEST")
	// ErrConflict indicates a state conflict, such as an illegal status transition.
	ErrConflict = NewKind("CONFLICT")
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewKind("INTERNAL")
	// ErrTimeout indicates the operation exceeded its deadline.
	ErrTimeout = NewKind("TIMEOUT")
	// ErrUnavailable indicates a dependency is temporarily unreachable.
	ErrUnavailable = NewKind("UNAVAILABLE")
	// ErrRateLimited indicates a dependency rejected the call for sending too
	// many requests.
	ErrRateLimited = NewKind("RATE_LIMITED")
)

// Error is a semantic error: a kind sentinel, an optional wrapped cause and an
// optional message. It participates fully in errors.Is/As/Unwrap chains.
//
// errors.Is matches against both the kind sentinel and the wrapped cause, so
// callers can test for the category without knowing the concrete cause and
// vice versa.
//
// The rendered string is "<msg>: <cause>" when both are present, otherwise
// whichever of the two is set, otherwise the kind's name.
type Error struct {
	kind Kind
	err  error
	msg  string
}

// With builds a semantic error of the given kind with a formatted message and
// no wrapped cause.
func With(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap builds a semantic error of the given kind wrapping a concrete cause.
func Wrap(k Kind, err error, msgFmt string, args ...any) *Error {
	return &Error{kind: k, err: err, msg: fmt.Sprintf(msgFmt, args...)}
}

// KindOnly builds a semantic error carrying nothing but the kind.
func KindOnly(k Kind) *Error { return &Error{kind: k} }

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	case e.kind != nil:
		return e.kind.Error()
	default:
		return "unknown error"
	}
}

// Unwrap exposes the wrapped cause to the errors package.
func (e *Error) Unwrap() error { return e.err }

// Is matches target against the kind sentinel as well as the wrapped cause.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return e == nil && target == nil
	}

	if e.kind != nil && errors.Is(e.kind, target) {
		return true
	}

	return e.err != nil && errors.Is(e.err, target)
}

// As attempts the assertion against the kind sentinel first, then the wrapped
// cause.
func (e *Error) As(target any) bool {
	if e == nil || target == nil {
		return false
	}

	if e.kind != nil && errors.As(e.kind, target) {
		return true
	}

	return e.err != nil && errors.As(e.err, target)
}

// Kind returns the semantic kind sentinel, or nil.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the message attached to the error, if any.
func (e *Error) Message() string { return e.msg }

// Cause returns the wrapped cause, which may be nil.
func (e *Error) Cause() error { return e.err }
