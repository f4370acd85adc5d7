// Package backend is the HTTP client for the ITSM backend's /api/auth
// endpoints.
//
// Every request carries an X-Request-ID UUID and the W3C trace context of
// the calling span. Failures are classified as *APIError (non-2xx),
// *TransportError (backend unreachable) or *DecodeError (unexpected body);
// IsNetworkOrServer groups the ones a user cannot fix by retyping a
// password.
package backend
