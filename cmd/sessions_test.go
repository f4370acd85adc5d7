package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_ListAndRevoke(t *testing.T) {
	b := newTestBackend(t)
	dir := t.TempDir()

	_, _, err := runCLI(t, "", cliArgs(b, dir, "sessions", "list")...)
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))

	_, _, err = runCLI(t, "", cliArgs(b, dir, "auth", "login", "-u", "ann", "--password", "pw")...)
	require.NoError(t, err)

	out, _, err := runCLI(t, "", cliArgs(b, dir, "sessions", "ls")...)
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "Firefox")

	out, _, err = runCLI(t, "", cliArgs(b, dir, "sessions", "revoke", "s2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Session s2 revoked")
	assert.Equal(t, 1, b.count("revoke"))

	// Revoking this machine's session signs out locally without a logout call.
	out, _, err = runCLI(t, "", cliArgs(b, dir, "sessions", "revoke", "s1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "you have been signed out")
	assert.Equal(t, 0, b.count("logout"))

	_, _, err = runCLI(t, "", cliArgs(b, dir, "sessions", "list")...)
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))
}

func TestSessionsRevoke_RequiresID(t *testing.T) {
	b := newTestBackend(t)
	_, _, err := runCLI(t, "", cliArgs(b, t.TempDir(), "sessions", "revoke")...)
	require.Error(t, err)
}
