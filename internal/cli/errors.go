package cli

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"deskauth/internal/backend"
	"deskauth/pkg/auth"
)

// ConnectionErrorType categorizes why the backend could not be reached.
type ConnectionErrorType int

const (
	ConnectionErrorUnknown ConnectionErrorType = iota
	ConnectionErrorTLS
	ConnectionErrorNetwork
	ConnectionErrorTimeout
	ConnectionErrorDNS
	// ConnectionErrorServer means the backend answered with a 5xx or an
	// unreadable body.
	ConnectionErrorServer
)

// String returns a human-readable name for the connection error type.
func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	case ConnectionErrorServer:
		return "Server error"
	default:
		return "Connection error"
	}
}

// ConnectionError indicates the ITSM backend could not answer.
type ConnectionError struct {
	// Endpoint is the backend base URL.
	Endpoint string
	Type     ConnectionErrorType
	Reason   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf(`%s while contacting %s: %v

Check that the server is reachable, or point deskauth at another one with
  deskauth --api-url <url> ...`, e.Type, e.Endpoint, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

// ClassifyConnectionError categorizes err. It returns nil for nil.
func ClassifyConnectionError(err error, endpoint string) *ConnectionError {
	if err == nil {
		return nil
	}
	ce := &ConnectionError{Endpoint: endpoint, Type: ConnectionErrorUnknown, Reason: err}

	var dnsErr *net.DNSError
	var apiErr *backend.APIError
	var decodeErr *backend.DecodeError
	switch {
	case isTLSError(err):
		ce.Type = ConnectionErrorTLS
	case errors.As(err, &dnsErr):
		ce.Type = ConnectionErrorDNS
	case isTimeoutError(err):
		ce.Type = ConnectionErrorTimeout
	case errors.As(err, &apiErr) && apiErr.ServerSide(), errors.As(err, &decodeErr):
		ce.Type = ConnectionErrorServer
	case isNetworkError(err.Error()):
		ce.Type = ConnectionErrorNetwork
	}
	return ce
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "tls:")
}

func isTimeoutError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "deadline exceeded")
}

func isNetworkError(msg string) bool {
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
	} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// AuthRequiredError means the command needs a signed-in user.
type AuthRequiredError struct {
	Message string
}

func (e *AuthRequiredError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "You are not logged in."
	}
	return msg + `

To sign in, run:
  deskauth auth login

To check current authentication status:
  deskauth auth status`
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthExpiredError means the session ended because renewal failed.
type AuthExpiredError struct {
	Message string
}

func (e *AuthExpiredError) Error() string {
	return e.Message + `

To sign in again, run:
  deskauth auth login`
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthExpiredError) Is(target error) bool {
	_, ok := target.(*AuthExpiredError)
	return ok
}

// AuthFailedError means credentials or a verification code were rejected.
type AuthFailedError struct {
	Reason error
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("Authentication failed: %v", e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// AccountLockedError means logins are rejected locally until Until.
type AccountLockedError struct {
	Until  *time.Time
	Reason error
}

func (e *AccountLockedError) Error() string {
	if e.Until == nil {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%v\nTry again after %s.", e.Reason, e.Until.Local().Format(time.Kitchen))
}

func (e *AccountLockedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AccountLockedError) Is(target error) bool {
	_, ok := target.(*AccountLockedError)
	return ok
}

// TranslateError turns an error from the session layer into the CLI error
// carrying the matching guidance. Errors of other origins pass through.
func TranslateError(err error, endpoint string) error {
	if err == nil {
		return nil
	}
	var ae *auth.Error
	if !errors.As(err, &ae) {
		if backend.IsNetworkOrServer(err) {
			return ClassifyConnectionError(err, endpoint)
		}
		return err
	}

	switch ae.Kind {
	case auth.KindNotAuthenticated:
		return &AuthRequiredError{Message: ae.Message}
	case auth.KindTokenRenewalFailed:
		return &AuthExpiredError{Message: ae.Message}
	case auth.KindInvalidCredentials, auth.KindMfaInvalid, auth.KindMfaRequired:
		return &AuthFailedError{Reason: ae}
	case auth.KindAccountLocked:
		return &AccountLockedError{Until: ae.Until, Reason: ae}
	case auth.KindNetworkOrServer:
		if ae.Err != nil {
			return ClassifyConnectionError(ae.Err, endpoint)
		}
	}
	return err
}

// ExitError carries an exit code without further output, e.g. for a
// permission check that evaluated to false.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
