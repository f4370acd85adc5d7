package auth

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an authentication failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindAccountLocked
	KindMfaRequired
	KindMfaInvalid
	KindNetworkOrServer
	KindTokenRenewalFailed
	KindNotAuthenticated
	// KindBusy means another login or MFA verification is already running.
	KindBusy
	// KindInvalidState means the operation is not valid in the current state.
	KindInvalidState
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindAccountLocked:
		return "AccountLocked"
	case KindMfaRequired:
		return "MfaRequired"
	case KindMfaInvalid:
		return "MfaInvalid"
	case KindNetworkOrServer:
		return "NetworkOrServerError"
	case KindTokenRenewalFailed:
		return "TokenRenewalFailed"
	case KindNotAuthenticated:
		return "NotAuthenticated"
	case KindBusy:
		return "Busy"
	case KindInvalidState:
		return "InvalidState"
	default:
		return "Unknown"
	}
}

// Error is the error type returned across the session manager boundary.
// Message is always safe to show to a user.
type Error struct {
	Kind    Kind
	Message string
	// Until is set for KindAccountLocked.
	Until *time.Time
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrAccountLocked)
// works regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrAccountLocked      = &Error{Kind: KindAccountLocked}
	ErrMfaRequired        = &Error{Kind: KindMfaRequired}
	ErrMfaInvalid         = &Error{Kind: KindMfaInvalid}
	ErrNetworkOrServer    = &Error{Kind: KindNetworkOrServer}
	ErrTokenRenewalFailed = &Error{Kind: KindTokenRenewalFailed}
	ErrNotAuthenticated   = &Error{Kind: KindNotAuthenticated}
	ErrBusy               = &Error{Kind: KindBusy}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
)

// NewError builds an *Error of the given kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
