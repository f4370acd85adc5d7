package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"deskauth/pkg/auth"
	"deskauth/pkg/logging"
)

// RequestIDHeader carries a per-request UUID for backend log correlation.
const RequestIDHeader = "X-Request-ID"

const (
	// DefaultTimeout bounds every backend call.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 64 << 10
)

// Client talks to the ITSM backend's /api/auth surface. It is safe for
// concurrent use. A cookie jar keeps any server-side MFA challenge cookie
// between login and verification.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tracer     trace.Tracer
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent the backend records for sessions.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for baseURL, e.g. https://itsm.example.com.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend URL must be absolute: %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout, Jar: jar},
		tracer:     otel.Tracer("deskauth/backend"),
		userAgent:  "deskauth",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login posts username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", "", loginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" && !out.MFARequired {
		return nil, &DecodeError{Op: "login", Err: errors.New("neither access_token nor mfa_required in response")}
	}
	return &out, nil
}

// VerifyMFA submits a second-factor code. mfaToken is echoed when the
// login response carried one.
func (c *Client) VerifyMFA(ctx context.Context, code, mfaToken string) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, "mfa_verify", http.MethodPost, "/api/auth/mfa/verify", "", mfaVerifyRequest{Code: code, MFAToken: mfaToken}, &out); err != nil {
		return nil, err
	}
	if out.Access() == "" {
		return nil, &DecodeError{Op: "mfa_verify", Err: errors.New("missing access_token")}
	}
	return &out, nil
}

// Me fetches the profile of the token's owner. Both {user:{...}} and a
// bare user object are accepted.
func (c *Client) Me(ctx context.Context, token string) (*auth.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "me", http.MethodGet, "/api/auth/me", token, nil, &raw); err != nil {
		return nil, err
	}
	return decodeUser("me", raw)
}

// Logout tells the backend to end the session.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", token, struct{}{}, nil)
}

// Sessions lists the caller's active sessions.
func (c *Client) Sessions(ctx context.Context, token string) ([]auth.Session, error) {
	var out sessionsResponse
	if err := c.do(ctx, "sessions", http.MethodGet, "/api/auth/sessions", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// RevokeSession ends one of the caller's sessions.
func (c *Client) RevokeSession(ctx context.Context, token, sessionID string) error {
	path := "/api/auth/sessions/" + url.PathEscape(sessionID)
	return c.do(ctx, "revoke_session", http.MethodDelete, path, token, nil, nil)
}

// Refresh exchanges the current session for a new access token.
func (c *Client) Refresh(ctx context.Context, token, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, "refresh", http.MethodPost, "/api/auth/refresh", token, refreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	if out.Access() == "" {
		return nil, &DecodeError{Op: "refresh", Err: errors.New("missing token")}
	}
	return &out, nil
}

// UpdateProfile changes the editable profile fields and returns the
// updated user.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*auth.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "update_profile", http.MethodPut, "/api/auth/profile", token, update, &raw); err != nil {
		return nil, err
	}
	return decodeUser("update_profile", raw)
}

// ChangePassword replaces the caller's password.
func (c *Client) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	return c.do(ctx, "change_password", http.MethodPost, "/api/auth/change-password", token,
		changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}, nil)
}

func decodeUser(op string, raw json.RawMessage) (*auth.User, error) {
	var wrapped meResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user auth.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if user.ID == "" {
		return nil, &DecodeError{Op: op, Err: errors.New("user without id")}
	}
	return &user, nil
}

// do performs one JSON request. in may be nil for bodiless requests and
// out may be nil to discard the response body.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) (err error) {
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "backend."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("deskauth.request_id", requestID),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set(RequestIDHeader, requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	logging.Debug("Backend", "%s %s (request %s)", method, path, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func apiError(resp *http.Response) *APIError {
	ae := &APIError{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		ae.Message = eb.Message
		if ae.Message == "" {
			ae.Message = eb.Detail
		}
		ae.Code = eb.Code
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(resp.StatusCode)
	}
	return ae
}
