package application

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuth
	KindAuthorization
	KindValidation
	KindNotFound
	KindPersistence
	KindUnavailable
	// Non-fatal kinds. They are logged and counted, never returned to a client.
	KindDownstreamSync
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	case KindUnavailable:
		return "unavailable"
	case KindDownstreamSync:
		return "downstream_sync"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Error carries a client-safe message in Msg; Err holds the cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// DownstreamSyncFailed wraps a stock decrement failure that leaves the order placed.
func DownstreamSyncFailed(cause error) *Error {
	return newError(KindDownstreamSync, cause, "stock decrement failed")
}

// NotificationFailed wraps a confirmation delivery failure.
func NotificationFailed(cause error) *Error {
	return newError(KindNotification, cause, "order confirmation failed")
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the client-facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "Internal server error"
}
