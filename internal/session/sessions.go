package session

import (
	"context"

	"deskauth/internal/backend"
	"deskauth/internal/credstore"
	"deskauth/pkg/auth"
	"deskauth/pkg/logging"
)

// FetchSessions loads the caller's active sessions from the backend. When
// the backend cannot be reached the last fetched list is returned instead.
func (m *Manager) FetchSessions(ctx context.Context) ([]auth.Session, error) {
	ctx, span := m.tracer.Start(ctx, "session.FetchSessions")
	defer span.End()

	token, err := m.requireToken()
	if err != nil {
		return nil, err
	}

	sessions, err := m.backend.Sessions(ctx, token)
	if err != nil {
		span.RecordError(err)
		if backend.IsNetworkOrServer(err) {
			logging.Warn("Session", "Could not refresh session list, using cached list: %v", err)
			m.mu.Lock()
			defer m.mu.Unlock()
			return append([]auth.Session(nil), m.sessions...), nil
		}
		return nil, m.classify(err, "The session list could not be loaded.")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds.AccessToken.Value() == token {
		m.sessions = append([]auth.Session(nil), sessions...)
		m.publishLocked()
	}
	return append([]auth.Session(nil), sessions...), nil
}

// RevokeSession terminates a remote session. Revoking the session this
// client is using ends the local session as well, without a second logout
// call to the backend.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string) error {
	ctx, span := m.tracer.Start(ctx, "session.RevokeSession")
	defer span.End()

	token, err := m.requireToken()
	if err != nil {
		return err
	}

	current, known := m.lookupSession(sessionID)
	if !known {
		if _, err := m.FetchSessions(ctx); err != nil {
			return err
		}
		current, _ = m.lookupSession(sessionID)
	}

	if err := m.backend.RevokeSession(ctx, token, sessionID); err != nil {
		span.RecordError(err)
		return m.classify(err, "The session could not be revoked.")
	}
	logging.Audit("session_revoked", "session_id", sessionID, "current", current)

	if current {
		m.endLocally(ctx)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.sessions[:0:0]
	for _, s := range m.sessions {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	m.sessions = kept
	m.publishLocked()
	return nil
}

func (m *Manager) lookupSession(id string) (current, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return s.Current, true
		}
	}
	return false, false
}

// endLocally drops the session without notifying the backend.
func (m *Manager) endLocally(ctx context.Context) {
	m.mu.Lock()
	m.quiesce++
	sched := m.detachSchedulerLocked()
	m.mu.Unlock()
	defer m.endQuiesce()
	sched.stop()

	m.mu.Lock()
	m.resetLocked(StateAnonymous)
	m.epoch++
	m.publishLocked()
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		logging.Error("Session", err, "Failed to clear credentials")
	}
}

// requireToken returns the current access token or NotAuthenticated.
func (m *Manager) requireToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil || m.creds.AccessToken.IsEmpty() {
		return "", auth.NewError(auth.KindNotAuthenticated, msgNotAuthenticated, nil)
	}
	return m.creds.AccessToken.Value(), nil
}

// classify maps a backend error to an *auth.Error.
func (m *Manager) classify(err error, fallback string) error {
	switch {
	case backend.IsNetworkOrServer(err):
		return auth.NewError(auth.KindNetworkOrServer, msgServerUnavailable, err)
	case backend.IsUnauthorized(err):
		return auth.NewError(auth.KindNotAuthenticated, serverMessage(err, msgNotAuthenticated), err)
	default:
		return auth.NewError(auth.KindUnknown, serverMessage(err, fallback), err)
	}
}

// currentCredentials returns a copy of the in-memory credentials.
func (m *Manager) currentCredentials() credstore.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}
