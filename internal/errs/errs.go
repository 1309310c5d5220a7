// Package errs defines the error taxonomy shared by the vault components.
//
// Every component boundary wraps low-level failures into an *Error carrying
// one of the kind sentinels below plus the detailed cause. The detail is for
// logs and tests; Message returns the generic text safe to show a user.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kinds
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrAuthFailed   = errors.New("authentication or integrity failure")
	ErrIO           = errors.New("i/o failure")
	ErrCancelled    = errors.New("cancelled")
)

// Error is a classified failure.
type Error struct {
	Kind error  // one of the kind sentinels
	Op   string // operation that failed, e.g. "vault.Save"
	Err  error  // detailed internal cause
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E wraps err under kind. Context cancellation always classifies as
// ErrCancelled regardless of the requested kind.
func E(kind error, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = ErrCancelled
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is E with a formatted cause.
func Errorf(kind error, op string, format string, args ...any) error {
	return E(kind, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind sentinel of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, k := range []error{ErrCancelled, ErrNotFound, ErrInvalidInput, ErrAuthFailed, ErrIO} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns a generic, user-facing description of err.
// It never includes paths, status codes or cryptographic detail.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case ErrNotFound:
		return "The requested item could not be found."
	case ErrInvalidInput:
		return "The request was not valid."
	case ErrAuthFailed:
		return "The data could not be unlocked. The password may be wrong or the data may be damaged."
	case ErrIO:
		return "A storage error occurred. Check available space and permissions."
	case ErrCancelled:
		return "The operation was cancelled."
	default:
		return "An unexpected error occurred."
	}
}
