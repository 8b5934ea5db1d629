// Package apperror defines the error taxonomy shared by the attempt core and its store:
// guard violations are permanent, not-found is surfaced as absence, unavailable is transient.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and HTTP mapping decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindGuardViolation
	KindNotFound
	KindUnavailable
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindGuardViolation:
		return "guard_violation"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error carries a Kind, a stable machine code and an optional cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code, and kind-only sentinels (empty Code) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// Kind-only sentinels for errors.Is checks.
var (
	ErrGuardViolation = &Error{Kind: KindGuardViolation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrUnavailable    = &Error{Kind: KindUnavailable}
	ErrInvalid        = &Error{Kind: KindInvalid}
)

// Guard declares a permanent guard-violation sentinel.
func Guard(code, message string) *Error {
	return &Error{Kind: KindGuardViolation, Code: code, Message: message}
}

// NotFound declares a not-found sentinel for a resource.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Invalid declares an input validation error.
func Invalid(code, message string) *Error {
	return &Error{Kind: KindInvalid, Code: code, Message: message}
}

// Unavailable wraps a transient transport or store failure.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Code: "UNAVAILABLE", Message: "store unavailable", Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is transient and safe to retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
