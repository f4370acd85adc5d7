package session

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"deskauth/internal/backend"
	"deskauth/internal/credstore"
	"deskauth/internal/idp"
	"deskauth/pkg/auth"
	"deskauth/pkg/logging"
)

// RefreshToken exchanges the stored refresh token at the backend for a new
// access token. When the exchange fails the session is ended.
func (m *Manager) RefreshToken(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "session.RefreshToken")
	defer span.End()

	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return auth.NewError(auth.KindNotAuthenticated, msgNotAuthenticated, nil)
	}
	epoch := m.epoch
	creds := m.creds
	m.mu.Unlock()

	if creds.RefreshToken.IsEmpty() {
		return auth.NewError(auth.KindTokenRenewalFailed, "No refresh token is available.", nil)
	}

	resp, err := m.backend.Refresh(ctx, creds.AccessToken.Value(), creds.RefreshToken.Value())
	if err == nil && resp.Access() == "" {
		err = auth.NewError(auth.KindTokenRenewalFailed, "The server returned no access token.", nil)
	}
	if err != nil {
		span.RecordError(err)
		logging.Warn("Session", "Token refresh failed, logging out: %v", err)
		if lerr := m.Logout(ctx); lerr != nil {
			logging.Error("Session", lerr, "Logout after failed refresh")
		}
		m.mu.Lock()
		m.setErrorLocked(auth.KindTokenRenewalFailed, msgSessionExpired)
		m.publishLocked()
		m.mu.Unlock()
		return auth.NewError(auth.KindTokenRenewalFailed, msgSessionExpired, err)
	}

	next := credstore.Credentials{
		AccessToken:  credstore.NewSecret(resp.Access()),
		RefreshToken: credstore.NewSecret(resp.RefreshToken),
		Expiry:       m.deriveExpiry(resp.Access(), resp.ExpiresIn),
	}
	if next.RefreshToken.IsEmpty() {
		next.RefreshToken = creds.RefreshToken
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return auth.NewError(auth.KindNotAuthenticated, msgNotAuthenticated, nil)
	}
	m.creds = next
	m.publishLocked()
	m.mu.Unlock()

	if err := m.store.SaveCredentials(ctx, next); err != nil {
		return err
	}
	if err := m.confirmWrite(epoch); err != nil {
		return err
	}
	logging.Audit("token_refreshed")
	return nil
}

// RefreshProfile reloads the signed-in user from the backend.
func (m *Manager) RefreshProfile(ctx context.Context) (*auth.User, error) {
	ctx, span := m.tracer.Start(ctx, "session.RefreshProfile")
	defer span.End()

	token, err := m.requireToken()
	if err != nil {
		return nil, err
	}
	user, err := m.backend.Me(ctx, token)
	if err != nil {
		span.RecordError(err)
		return nil, m.classify(err, "The user profile could not be loaded.")
	}
	return m.replaceUser(ctx, token, user)
}

// UpdateProfile changes name, email or avatar of the signed-in user.
func (m *Manager) UpdateProfile(ctx context.Context, update backend.ProfileUpdate) (*auth.User, error) {
	ctx, span := m.tracer.Start(ctx, "session.UpdateProfile")
	defer span.End()

	token, err := m.requireToken()
	if err != nil {
		return nil, err
	}
	user, err := m.backend.UpdateProfile(ctx, token, update)
	if err != nil {
		span.RecordError(err)
		return nil, m.classify(err, "The profile could not be updated.")
	}
	logging.Audit("profile_updated", "user_id", user.ID)
	return m.replaceUser(ctx, token, user)
}

// ChangePassword changes the password of the signed-in user.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	ctx, span := m.tracer.Start(ctx, "session.ChangePassword")
	defer span.End()

	token, err := m.requireToken()
	if err != nil {
		return err
	}
	if err := m.backend.ChangePassword(ctx, token, oldPassword, newPassword); err != nil {
		span.RecordError(err)
		return m.classify(err, "The password could not be changed.")
	}
	logging.Audit("password_changed")
	return nil
}

// replaceUser installs user when the session behind token is still current
// and persists it with the current credentials.
func (m *Manager) replaceUser(ctx context.Context, token string, user *auth.User) (*auth.User, error) {
	m.mu.Lock()
	if m.user == nil || m.creds.AccessToken.Value() != token {
		m.mu.Unlock()
		return nil, auth.NewError(auth.KindNotAuthenticated, msgNotAuthenticated, nil)
	}
	epoch := m.epoch
	m.user = user
	creds := m.creds
	m.publishLocked()
	m.mu.Unlock()

	if err := m.store.Save(ctx, credstore.Record{Credentials: creds, User: user}); err != nil {
		return nil, err
	}
	if err := m.confirmWrite(epoch); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// LoginWithIdentityProvider signs in interactively through the external
// directory. prompt receives the device code the user must enter. The user
// is built from the directory account with the configured default role and
// permissions.
func (m *Manager) LoginWithIdentityProvider(ctx context.Context, prompt func(*oauth2.DeviceAuthResponse)) (*auth.User, error) {
	ctx, span := m.tracer.Start(ctx, "session.LoginWithIdentityProvider")
	defer span.End()

	if m.idp == nil {
		return nil, auth.NewError(auth.KindInvalidState, "No identity provider is configured.", nil)
	}

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, auth.NewError(auth.KindBusy, msgBusy, nil)
	}
	if lock := m.attempts.lock(); lock.Locked {
		msg := lockedMessage(lock, m.clock.Now())
		m.mu.Unlock()
		return nil, lockedError(lock, msg)
	}
	m.inFlight = true
	epoch := m.epoch
	prev := m.resetLocked(StateAuthenticating)
	m.publishLocked()
	m.mu.Unlock()

	defer m.endFlight()
	prev.stop()

	if err := m.store.Clear(ctx); err != nil {
		logging.Warn("Session", "Failed to clear previous credentials: %v", err)
	}

	tok, err := m.idp.SignIn(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch == epoch {
			m.state = StateError
			m.setErrorLocked(auth.KindNetworkOrServer, "Directory sign-in failed.")
			m.publishLocked()
		}
		logging.Audit("sso_failed")
		return nil, auth.NewError(auth.KindNetworkOrServer, "Directory sign-in failed.", err)
	}

	user := m.userFromDirectory(tok)
	creds := credstore.Credentials{AccessToken: tok.AccessToken, Expiry: tok.ExpiresAt}
	if err := m.store.Save(ctx, credstore.Record{Credentials: creds, User: user}); err != nil {
		return nil, m.authFailedAfterToken(epoch, "Signed in, but the credentials could not be saved.", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.settleOvertakenWriteLocked()
		return nil, auth.NewError(auth.KindNotAuthenticated, msgLoginCancelled, nil)
	}
	m.enterAuthenticatedLocked(user, creds)

	span.SetAttributes(attribute.String("deskauth.user_id", user.ID))
	logging.Audit("sso_succeeded", "user", tok.Account.Username)
	return user.Clone(), nil
}

func (m *Manager) userFromDirectory(tok *idp.Token) *auth.User {
	acct := tok.Account
	id := tok.Claims.ObjectID
	if id == "" {
		id = acct.HomeAccountID
	}
	name := firstNonEmpty(acct.Name, tok.Claims.Name, acct.Username)
	email := firstNonEmpty(acct.Email, tok.Claims.Email, tok.Claims.PreferredUsername, acct.Username)
	role := m.defRole
	if role == "" {
		role = auth.RoleGeneralUser
	}
	return &auth.User{
		ID:          id,
		Name:        name,
		Email:       email,
		Role:        role,
		Permissions: auth.NewPermissionSet(m.defPerms...),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
