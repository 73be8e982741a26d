// Package apperr defines the error kinds surfaced by the reward engine and the
// assistant, independent of the transport that reports them.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an Error.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindAlreadyUsed Kind = "already_used"
	KindValidation  Kind = "validation"
	KindUnavailable Kind = "unavailable"
)

// Error is a classified application error.
type Error struct {
	Kind Kind
	Op   string
	// UsedAt is set for KindAlreadyUsed.
	UsedAt *time.Time
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == KindAlreadyUsed && e.UsedAt != nil {
		msg += " at " + e.UsedAt.UTC().Format(time.RFC3339)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports that the requested resource does not exist.
func NotFound(op string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

// AlreadyUsed reports a consumed redemption code.
func AlreadyUsed(op string, usedAt time.Time) *Error {
	t := usedAt
	return &Error{Kind: KindAlreadyUsed, Op: op, UsedAt: &t}
}

// Validation reports a missing or malformed input field.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Unavailable reports that the store or an upstream service could not be reached.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UsedAtOf returns the consumption time carried by an AlreadyUsed error.
func UsedAtOf(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && e.UsedAt != nil {
		return *e.UsedAt, true
	}
	return time.Time{}, false
}
