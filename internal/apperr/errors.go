// Package apperr provides the tagged error type reported to clients.
// An Error carries a machine-readable Kind, a human-readable Message and
// an optional Detail; the wrapped cause is kept for logging only.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the wire-level error code.
type Kind string

// Error kinds reported on the delivery endpoint.
const (
	KindInvalidPayload     Kind = "invalid_payload"
	KindUnknownAction      Kind = "unknown_action"
	KindMissingCredentials Kind = "missing_credentials"
	KindDBConnectFailed    Kind = "db_connect_failed"
	KindAuthFailed         Kind = "auth_failed"
	KindDBQueryFailed      Kind = "db_query_failed"
	KindRateLimited        Kind = "rate_limited"
	KindBusy               Kind = "busy"
	KindInternal           Kind = "internal"
)

// Transient reports whether a caller may retry the same request.
func (k Kind) Transient() bool {
	switch k {
	case KindDBConnectFailed, KindDBQueryFailed, KindRateLimited, KindBusy, KindInternal:
		return true
	default:
		return false
	}
}

// Error is a client-facing failure.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error that keeps cause for errors.Is/As and logging.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetail returns a copy of e carrying detail.
func (e *Error) WithDetail(detail string) *Error {
	c := *e
	c.Detail = detail
	return &c
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns err's Kind, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
