// Package session implements the authentication state machine of the
// console.
//
// A Manager moves between the states
//
//	Anonymous -> Authenticating -> Authenticated | MfaPending | LockedOut | Error
//	MfaPending -> Authenticating -> Authenticated | MfaPending | Error
//	Authenticated -> Anonymous
//
// It owns the signed-in user, the in-memory credentials, the failed login
// counter and the renewal scheduler. The scheduler ticks at a fixed
// interval and renews the access token through the identity provider once
// its expiry has passed; a failed renewal ends the session.
//
// Observers read state through Snapshot or Subscribe. Outgoing requests
// are authorized through Token, AuthorizeRequest or HTTPClient.
package session
