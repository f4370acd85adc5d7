package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskauth/internal/backend"
	"deskauth/pkg/auth"
)

func TestAuthErrors_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"required", &AuthRequiredError{}, &AuthRequiredError{}},
		{"expired", &AuthExpiredError{Message: "gone"}, &AuthExpiredError{}},
		{"failed", &AuthFailedError{Reason: errors.New("nope")}, &AuthFailedError{}},
		{"locked", &AccountLockedError{Reason: errors.New("locked")}, &AccountLockedError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.target))
			assert.False(t, errors.Is(tt.err, errors.New("other")))
		})
	}
}

func TestAuthRequiredError_Guidance(t *testing.T) {
	msg := (&AuthRequiredError{}).Error()
	assert.Contains(t, msg, "You are not logged in.")
	assert.Contains(t, msg, "deskauth auth login")
	assert.Contains(t, msg, "deskauth auth status")
}

func TestTranslateError(t *testing.T) {
	until := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	locked := auth.NewError(auth.KindAccountLocked, "Too many failed login attempts.", nil)
	locked.Until = &until

	tests := []struct {
		name  string
		in    error
		check func(t *testing.T, out error)
	}{
		{
			name: "nil",
			in:   nil,
			check: func(t *testing.T, out error) {
				assert.NoError(t, out)
			},
		},
		{
			name: "not authenticated",
			in:   auth.NewError(auth.KindNotAuthenticated, "You are not logged in.", nil),
			check: func(t *testing.T, out error) {
				assert.ErrorIs(t, out, &AuthRequiredError{})
			},
		},
		{
			name: "renewal failed",
			in:   auth.NewError(auth.KindTokenRenewalFailed, "Your session has expired.", nil),
			check: func(t *testing.T, out error) {
				assert.ErrorIs(t, out, &AuthExpiredError{})
				assert.Contains(t, out.Error(), "Your session has expired.")
			},
		},
		{
			name: "bad credentials",
			in:   auth.NewError(auth.KindInvalidCredentials, "Invalid username or password.", nil),
			check: func(t *testing.T, out error) {
				assert.ErrorIs(t, out, &AuthFailedError{})
				assert.ErrorIs(t, out, auth.ErrInvalidCredentials)
			},
		},
		{
			name: "locked",
			in:   locked,
			check: func(t *testing.T, out error) {
				var le *AccountLockedError
				require.ErrorAs(t, out, &le)
				assert.True(t, le.Until.Equal(until))
				assert.Contains(t, out.Error(), "Try again after")
			},
		},
		{
			name: "server error",
			in: auth.NewError(auth.KindNetworkOrServer, "The server could not be reached.",
				&backend.APIError{Status: http.StatusBadGateway, Message: "Bad Gateway"}),
			check: func(t *testing.T, out error) {
				var ce *ConnectionError
				require.ErrorAs(t, out, &ce)
				assert.Equal(t, ConnectionErrorServer, ce.Type)
				assert.Equal(t, "http://api.test", ce.Endpoint)
			},
		},
		{
			name: "plain error",
			in:   errors.New("boom"),
			check: func(t *testing.T, out error) {
				assert.EqualError(t, out, "boom")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, TranslateError(tt.in, "http://api.test"))
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ConnectionErrorType
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "api.invalid"}, ConnectionErrorDNS},
		{"timeout", &backend.TransportError{Op: "login", Err: timeoutErr{}}, ConnectionErrorTimeout},
		{"deadline", context.DeadlineExceeded, ConnectionErrorTimeout},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ConnectionErrorNetwork},
		{"tls", errors.New("tls: failed to verify certificate: x509: certificate signed by unknown authority"), ConnectionErrorTLS},
		{"decode", &backend.DecodeError{Op: "me", Err: errors.New("unexpected EOF")}, ConnectionErrorServer},
		{"other", errors.New("weird"), ConnectionErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyConnectionError(tt.err, "http://api.test")
			require.NotNil(t, ce)
			assert.Equal(t, tt.want, ce.Type)
			assert.ErrorIs(t, ce, tt.err)
		})
	}
	assert.Nil(t, ClassifyConnectionError(nil, "x"))
}
