package risk

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes risk calculation failures. Every kind is a
// deterministic misuse of the API; none of them are worth retrying.
type ErrorKind string

const (
	KindTypeMismatch       ErrorKind = "TYPE_MISMATCH"
	KindEmptyInput         ErrorKind = "EMPTY_INPUT"
	KindDimensionMismatch  ErrorKind = "DIMENSION_MISMATCH"
	KindInsufficientData   ErrorKind = "INSUFFICIENT_DATA"
	KindInvalidParameter   ErrorKind = "INVALID_PARAMETER"
	KindDegenerateInput    ErrorKind = "DEGENERATE_INPUT"
	KindMissingCoefficient ErrorKind = "MISSING_COEFFICIENT"
)

// Sentinel errors for errors.Is matching on kind.
var (
	ErrTypeMismatch       = &Error{Kind: KindTypeMismatch}
	ErrEmptyInput         = &Error{Kind: KindEmptyInput}
	ErrDimensionMismatch  = &Error{Kind: KindDimensionMismatch}
	ErrInsufficientData   = &Error{Kind: KindInsufficientData}
	ErrInvalidParameter   = &Error{Kind: KindInvalidParameter}
	ErrDegenerateInput    = &Error{Kind: KindDegenerateInput}
	ErrMissingCoefficient = &Error{Kind: KindMissingCoefficient}
)

// Error is returned by every operation in this package.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "aggregate"
	Msg  string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Msg)
}

// Is reports whether target is a *Error of the same kind. It lets callers
// write errors.Is(err, risk.ErrEmptyInput).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of a risk error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsInputError reports whether the kind describes bad caller input rather
// than a model that cannot produce the requested quantity.
func (k ErrorKind) IsInputError() bool {
	switch k {
	case KindTypeMismatch, KindEmptyInput, KindDimensionMismatch,
		KindInsufficientData, KindInvalidParameter, KindDegenerateInput:
		return true
	}
	return false
}
