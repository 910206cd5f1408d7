package serr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInternal              Kind = "internal"
	KindNotAuthenticated      Kind = "not_authenticated"
	KindSyncFailure           Kind = "sync_failure"
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindPartialReconciliation Kind = "partial_reconciliation"
)

// Error is a classified failure returned to the immediate caller. Env carries the identifiers
// that were involved so the failure can be logged and retried.
type Error struct {
	Kind Kind
	Err  error
	Msg  string
	Env  map[string]string
}

func New(kind Kind, err error, msg string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Err:  err,
		Msg:  fmt.Sprintf(msg, args...),
		Env:  make(map[string]string),
	}
}

func NotAuthenticated(msg string, args ...any) *Error {
	return New(KindNotAuthenticated, nil, msg, args...)
}

func SyncFailure(err error, msg string, args ...any) *Error {
	return New(KindSyncFailure, err, msg, args...)
}

func Validation(msg string, args ...any) *Error {
	return New(KindValidation, nil, msg, args...)
}

func NotFound(err error, msg string, args ...any) *Error {
	return New(KindNotFound, err, msg, args...)
}

// With sets an Env entry and returns the error for chaining.
func (e *Error) With(key, val string) *Error {
	e.Env[key] = val
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of the first classified error in err's chain. Errors that
// carry a Kind method (for example batch results) are recognised as well.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
