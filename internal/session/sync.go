package session

import (
	"context"
	"errors"

	"deskauth/internal/credstore"
	"deskauth/pkg/auth"
	"deskauth/pkg/logging"
)

const msgSignedOutElsewhere = "You were signed out from another window."

// Resync reconciles the in-memory session with the credential store after
// another process changed it. A cleared store ends the local session
// without notifying the backend. Renewed credentials for the same user are
// adopted. When this Manager is anonymous a stored session is restored.
func (m *Manager) Resync(ctx context.Context) error {
	m.mu.Lock()
	if m.inFlight || m.quiesce > 0 {
		m.mu.Unlock()
		return nil
	}
	signedIn := m.user != nil
	m.mu.Unlock()

	if !signedIn {
		return m.Restore(ctx)
	}

	rec, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, credstore.ErrNotFound), errors.Is(err, credstore.ErrCorrupt):
		logging.Info("Session", "Stored credentials were removed by another process")
		m.endLocally(ctx)
		m.mu.Lock()
		m.setErrorLocked(auth.KindNotAuthenticated, msgSignedOutElsewhere)
		m.publishLocked()
		m.mu.Unlock()
		return nil
	case err != nil:
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil || !rec.Complete() {
		return nil
	}
	if rec.User.ID != m.user.ID {
		// Another user signed in elsewhere; the next Restore picks it up.
		logging.Info("Session", "Stored credentials now belong to a different user")
		return nil
	}
	if rec.Credentials.AccessToken.Value() == m.creds.AccessToken.Value() && rec.Credentials.Expiry.Equal(m.creds.Expiry) {
		return nil
	}
	m.creds = rec.Credentials
	m.user = rec.User
	m.publishLocked()
	logging.Debug("Session", "Adopted credentials written by another process")
	return nil
}
