package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	want := GetDefaultConfig()
	want.Storage.Dir = dir
	assert.Equal(t, want, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `api:
  baseURL: https://itsm.example.com
identity:
  clientID: client-1
  tenantID: tenant-1
session:
  lockoutThreshold: 7
  lockoutDuration: 10m
  mfa:
    countTowardLockout: true
    maxAttempts: 3
storage:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://itsm.example.com", cfg.API.BaseURL)
	assert.Equal(t, DefaultAPITimeout, cfg.API.Timeout)
	assert.True(t, cfg.Identity.Enabled())
	assert.Equal(t, 7, cfg.Session.LockoutThreshold)
	assert.Equal(t, DefaultWarningThreshold, cfg.Session.WarningThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Session.LockoutDuration)
	assert.True(t, cfg.Session.MFA.CountTowardLockout)
	assert.Equal(t, 3, cfg.Session.MFA.MaxAttempts)
	assert.Equal(t, StorageBackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, dir, cfg.Storage.Dir)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api:\n  baseURL: https://file.example.com\n"), 0o600))

	t.Setenv("DESKAUTH_API_BASE_URL", "https://env.example.com")
	t.Setenv("DESKAUTH_IDP_CLIENT_ID", "env-client")
	t.Setenv("DESKAUTH_IDP_TENANT_ID", "env-tenant")
	t.Setenv("DESKAUTH_IDP_SCOPES", "api://desk/.default,offline_access")
	t.Setenv("DESKAUTH_SESSION_RENEWAL_INTERVAL", "15s")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "env-client", cfg.Identity.ClientID)
	assert.Equal(t, "env-tenant", cfg.Identity.TenantID)
	assert.Equal(t, []string{"api://desk/.default", "offline_access"}, cfg.Identity.Scopes)
	assert.Equal(t, 15*time.Second, cfg.Session.RenewalInterval)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api: [unterminated"), 0o600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading config")
}

func TestSave_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg := GetDefaultConfig()
	cfg.API.BaseURL = "https://saved.example.com"
	cfg.Storage.Dir = dir

	require.NoError(t, Save(dir, cfg))

	info, err := os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
