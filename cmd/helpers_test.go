package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"deskauth/internal/cli"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// testBackend serves ann (password "pw") and mia (password "pw", then code
// 123456) and counts calls per endpoint.
type testBackend struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int
}

func (b *testBackend) record(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[name]++
}

func (b *testBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{calls: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.record("login")
		var req struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case req.Password != "pw":
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid username or password"})
		case req.Username == "mia":
			writeJSON(w, http.StatusOK, map[string]any{"mfa_required": true, "mfa_token": "challenge"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-" + req.Username, "refresh_token": "rt", "expires_in": 3600})
		}
	})
	mux.HandleFunc("/api/auth/mfa/verify", func(w http.ResponseWriter, r *http.Request) {
		b.record("mfa")
		var req struct{ Code string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "123456" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid verification code"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-mia", "expires_in": 3600})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.record("me")
		if r.Header.Get("Authorization") == "Bearer revoked" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Session revoked"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
			"id": "u-1", "name": "Ann", "email": "ann@example.com", "role": "general_user",
			"permissions": []string{"tickets.read", "tickets.write"},
		}})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.record("logout")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.record("refresh")
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-renewed", "expires_in": 7200})
	})
	mux.HandleFunc("/api/auth/sessions", func(w http.ResponseWriter, r *http.Request) {
		b.record("sessions")
		writeJSON(w, http.StatusOK, map[string]any{"sessions": []map[string]any{
			{"id": "s1", "ipAddress": "10.0.0.1", "userAgent": "deskauth", "lastActive": "2026-04-01T08:59:00Z", "current": true},
			{"id": "s2", "ipAddress": "10.0.0.2", "userAgent": "Firefox", "lastActive": "2026-03-31T17:00:00Z"},
		}})
	})
	mux.HandleFunc("/api/auth/sessions/", func(w http.ResponseWriter, r *http.Request) {
		b.record("revoke")
		w.WriteHeader(http.StatusNoContent)
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// runCLI executes the root command with args against a fresh flag state
// and returns stdout, stderr and the error.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func resetFlags() {
	rootFlags = cli.CommandFlags{OutputFormat: string(cli.OutputFormatTable)}
	loginUsername, loginPassword, loginMFACode = "", "", ""
	logoutDirectory, canAny, statusOffline = false, false, false
	profileName, profileEmail, profileAvatar = "", "", ""
}

// cliArgs prefixes args with the flags pointing at backend and dir.
func cliArgs(b *testBackend, dir string, args ...string) []string {
	return append([]string{"--api-url", b.URL, "--config-path", dir}, args...)
}
