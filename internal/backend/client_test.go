package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      any
		wantMFA   bool
		wantToken string
		check     func(t *testing.T, err error)
	}{
		{
			name:      "direct token",
			status:    http.StatusOK,
			body:      map[string]any{"access_token": "tok", "token_type": "bearer"},
			wantToken: "tok",
		},
		{
			name:    "mfa required",
			status:  http.StatusOK,
			body:    map[string]any{"mfa_required": true, "mfa_token": "challenge"},
			wantMFA: true,
		},
		{
			name:   "bad credentials",
			status: http.StatusUnauthorized,
			body:   map[string]any{"message": "Invalid username or password"},
			check: func(t *testing.T, err error) {
				var ae *APIError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, "Invalid username or password", ae.Message)
				assert.True(t, IsUnauthorized(err))
				assert.False(t, IsNetworkOrServer(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   nil,
			check: func(t *testing.T, err error) {
				assert.True(t, IsNetworkOrServer(err))
				assert.Contains(t, err.Error(), "Bad Gateway")
			},
		},
		{
			name:   "empty success body",
			status: http.StatusOK,
			body:   map[string]any{},
			check: func(t *testing.T, err error) {
				var de *DecodeError
				assert.ErrorAs(t, err, &de)
				assert.True(t, IsNetworkOrServer(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/auth/login", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				_, err := uuid.Parse(r.Header.Get(RequestIDHeader))
				assert.NoError(t, err)

				var req loginRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "ann", req.Username)
				assert.Equal(t, "pw", req.Password)

				respond(w, tt.status, tt.body)
			})

			resp, err := c.Login(context.Background(), "ann", "pw")
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMFA, resp.MFARequired)
			assert.Equal(t, tt.wantToken, resp.AccessToken)
		})
	}
}

func TestMe_AcceptsWrappedAndBareUser(t *testing.T) {
	bodies := map[string]string{
		"wrapped": `{"user":{"id":"1","name":"Ann","email":"a@x","role":"general_user","permissions":["read"]}}`,
		"bare":    `{"id":"1","name":"Ann","email":"a@x","role":"general_user","permissions":["read"]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			})

			user, err := c.Me(context.Background(), "tok")
			require.NoError(t, err)
			assert.Equal(t, "1", user.ID)
			assert.True(t, user.Permissions.Has("read"))
		})
	}
}

func TestSessionsAndRevoke(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/auth/sessions":
			respond(w, http.StatusOK, map[string]any{"sessions": []map[string]any{
				{"id": "s1", "ipAddress": "10.0.0.1", "userAgent": "cli", "lastActive": "2026-01-01T10:00:00Z", "current": true},
				{"id": "s2", "ipAddress": "10.0.0.2", "userAgent": "web", "lastActive": "2026-01-01T09:00:00Z"},
			}})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/auth/sessions/s2":
			w.WriteHeader(http.StatusNoContent)
		default:
			respond(w, http.StatusNotFound, map[string]any{"message": "not found"})
		}
	})

	sessions, err := c.Sessions(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].Current)
	assert.Equal(t, "10.0.0.2", sessions[1].IPAddress)

	require.NoError(t, c.RevokeSession(context.Background(), "tok", "s2"))
	err = c.RevokeSession(context.Background(), "tok", "missing")
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestRefresh_LegacyTokenField(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rt", req.RefreshToken)
		respond(w, http.StatusOK, map[string]any{"token": "legacy"})
	})

	resp, err := c.Refresh(context.Background(), "old", "rt")
	require.NoError(t, err)
	assert.Equal(t, "legacy", resp.Access())
}

func TestChangePasswordAndProfile(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/change-password":
			var req changePasswordRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.OldPassword != "old" {
				respond(w, http.StatusBadRequest, map[string]any{"detail": "current password is wrong"})
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/api/auth/profile":
			assert.Equal(t, http.MethodPut, r.Method)
			var upd map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&upd))
			assert.Equal(t, map[string]any{"name": "New Name"}, upd)
			respond(w, http.StatusOK, map[string]any{"id": "1", "name": "New Name"})
		}
	})

	require.NoError(t, c.ChangePassword(context.Background(), "tok", "old", "new"))
	err := c.ChangePassword(context.Background(), "tok", "wrong", "new")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "current password is wrong", ae.Message)

	name := "New Name"
	user, err := c.UpdateProfile(context.Background(), "tok", ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.Name)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.Login(context.Background(), "a", "b")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, IsNetworkOrServer(err))
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	assert.Error(t, err)
}
