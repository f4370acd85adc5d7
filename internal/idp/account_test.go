package idp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountCache_MostRecentFirstAndPersisted(t *testing.T) {
	dir := t.TempDir()
	c, err := NewAccountCache(dir)
	require.NoError(t, err)

	require.NoError(t, c.Put(Account{HomeAccountID: "a", RefreshToken: "rt-a"}))
	require.NoError(t, c.Put(Account{HomeAccountID: "b", RefreshToken: "rt-b"}))
	require.NoError(t, c.Put(Account{HomeAccountID: "a", RefreshToken: "rt-a2"}))

	info, err := os.Stat(filepath.Join(dir, AccountCacheFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewAccountCache(dir)
	require.NoError(t, err)
	accounts, err := reopened.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].HomeAccountID)
	assert.Equal(t, "rt-a2", accounts[0].RefreshToken)
	assert.Equal(t, "b", accounts[1].HomeAccountID)

	require.NoError(t, reopened.Clear())
	_, err = os.Stat(filepath.Join(dir, AccountCacheFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestParseClaims(t *testing.T) {
	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	raw := signedJWT(t, jwt.MapClaims{
		"sub":                "subject-1",
		"tid":                "tenant",
		"name":               "Bob",
		"preferred_username": "bob@contoso.com",
		"exp":                exp.Unix(),
	})

	c, err := ParseClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", c.ObjectID, "falls back to sub without oid")
	assert.Equal(t, "Bob", c.Name)
	assert.True(t, exp.Equal(c.ExpiresAt))

	got, ok := TokenExpiry(raw)
	assert.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
}
