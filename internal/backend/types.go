package backend

import "deskauth/pkg/auth"

// LoginResponse is the body of POST /api/auth/login. Exactly one of
// AccessToken and MFARequired is meaningful.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	MFARequired  bool   `json:"mfa_required,omitempty"`
	// MFAToken is an optional challenge handle echoed back on verify.
	MFAToken string `json:"mfa_token,omitempty"`
}

// TokenResponse is returned by MFA verification and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	// Token is the legacy name some deployments use for AccessToken.
	Token string `json:"token,omitempty"`
}

// Access returns the issued access token under either name.
func (r *TokenResponse) Access() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged by the server.
type ProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type mfaVerifyRequest struct {
	Code     string `json:"code"`
	MFAToken string `json:"mfa_token,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type meResponse struct {
	User *auth.User `json:"user"`
}

type sessionsResponse struct {
	Sessions []auth.Session `json:"sessions"`
}

type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Code    string `json:"code"`
}
