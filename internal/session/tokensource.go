package session

import (
	"net/http"

	"golang.org/x/oauth2"

	"deskauth/pkg/auth"
)

// Token implements oauth2.TokenSource over the current session. It never
// returns an expired token; renewal is the scheduler's job.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil || m.creds.AccessToken.IsEmpty() {
		return nil, auth.NewError(auth.KindNotAuthenticated, msgNotAuthenticated, nil)
	}
	if m.creds.Expired(m.clock.Now()) {
		return nil, auth.NewError(auth.KindNotAuthenticated, msgSessionExpired, nil)
	}
	return &oauth2.Token{
		AccessToken: m.creds.AccessToken.Value(),
		TokenType:   "Bearer",
		Expiry:      m.creds.Expiry,
	}, nil
}

// AuthorizeRequest sets the Authorization header of req from the current
// session.
func (m *Manager) AuthorizeRequest(req *http.Request) error {
	tok, err := m.Token()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}

// HTTPClient returns a client that authorizes every request with the
// current session. base defaults to http.DefaultTransport.
func (m *Manager) HTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: m, Base: base},
	}
}

var _ oauth2.TokenSource = (*Manager)(nil)
