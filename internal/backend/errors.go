package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	// Message is the server-provided {message}, or the status text.
	Message string
	// Code is the optional machine-readable {code}, e.g. "account_locked".
	Code string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// ServerSide reports whether the failure is the server's fault.
func (e *APIError) ServerSide() bool {
	return e.Status >= 500
}

// TransportError wraps failures to reach the backend at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNetworkOrServer reports whether err means the backend could not answer
// properly: transport failures, undecodable bodies and 5xx responses.
func IsNetworkOrServer(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.ServerSide()
	}
	return false
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// IsUnauthorized reports a 401 response.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// DecodeError means the backend answered 2xx with a body that does not
// match the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
