package session

import (
	"time"

	"deskauth/pkg/auth"
)

// State is the Manager's position in the authentication lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateMFAPending
	StateLockedOut
	StateError
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateMFAPending:
		return "mfa_pending"
	case StateLockedOut:
		return "locked_out"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of everything observers may render.
type Snapshot struct {
	State State
	// User is nil unless authenticated. It is a copy and may be modified.
	User *auth.User
	// MFARequired is true while a second-factor challenge is pending.
	MFARequired bool
	// Error is the message of the last failure, empty when none.
	Error string
	// ErrorKind classifies Error.
	ErrorKind auth.Kind
	Lock      auth.AccountLock
	// FailedAttempts counts consecutive password failures.
	FailedAttempts int
	// TokenExpiry is the in-memory expiry the renewal scheduler watches.
	TokenExpiry time.Time
	// Sessions is the last fetched remote session list.
	Sessions []auth.Session
}

// IsAuthenticated reports whether a user is signed in.
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil
}

// Loading reports whether a login or verification is in progress.
func (s Snapshot) Loading() bool {
	return s.State == StateAuthenticating
}

// Outcome discriminates LoginResult.
type Outcome string

const (
	OutcomeAuthenticated Outcome = "authenticated"
	OutcomeMFARequired   Outcome = "mfa_required"
	OutcomeFailed        Outcome = "failed"
	OutcomeLocked        Outcome = "locked"
)

// LoginResult describes how a login attempt ended.
type LoginResult struct {
	Outcome Outcome
	// Message is safe to show to the user.
	Message string
	User    *auth.User
	// Warning is set once failures reach the warning threshold.
	Warning bool
	// RemainingAttempts is the number of failures left before lockout.
	RemainingAttempts int
	Lock              auth.AccountLock
}

// MFAResult describes how a verification attempt ended.
type MFAResult struct {
	Verified bool
	Message  string
	User     *auth.User
	// RemainingAttempts is the number of codes left before the challenge is
	// abandoned, or -1 when unlimited.
	RemainingAttempts int
	// Abandoned means the challenge ended and a new login is required.
	Abandoned bool
}
