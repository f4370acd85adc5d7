package config

import "time"

// Storage backends for the credential store.
const (
	StorageBackendFile   = "file"
	StorageBackendSQLite = "sqlite"
)

// Config is the top-level configuration structure for deskauth.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Identity  IdentityConfig  `yaml:"identity"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig describes the ITSM backend serving /api/auth/*.
type APIConfig struct {
	BaseURL string        `yaml:"baseURL" env:"DESKAUTH_API_BASE_URL"`
	Timeout time.Duration `yaml:"timeout,omitempty" env:"DESKAUTH_API_TIMEOUT"`
}

// IdentityConfig describes the external directory used for silent renewal
// and device-code sign-in.
type IdentityConfig struct {
	ClientID string `yaml:"clientID" env:"DESKAUTH_IDP_CLIENT_ID"`
	TenantID string `yaml:"tenantID" env:"DESKAUTH_IDP_TENANT_ID"`
	// AuthorityHost overrides the directory host, e.g. for sovereign clouds.
	// Empty means the public Microsoft identity platform.
	AuthorityHost string   `yaml:"authorityHost,omitempty" env:"DESKAUTH_IDP_AUTHORITY_HOST"`
	Scopes        []string `yaml:"scopes,omitempty" env:"DESKAUTH_IDP_SCOPES" envSeparator:","`
	// RenewalMargin is subtracted from the provider's expiry so renewal
	// fires before the token is actually invalid.
	RenewalMargin      time.Duration `yaml:"renewalMargin,omitempty" env:"DESKAUTH_IDP_RENEWAL_MARGIN"`
	DefaultRole        string        `yaml:"defaultRole,omitempty"`
	DefaultPermissions []string      `yaml:"defaultPermissions,omitempty"`
}

// Enabled reports whether enough is configured to talk to the directory.
func (c IdentityConfig) Enabled() bool {
	return c.ClientID != "" && c.TenantID != ""
}

// SessionConfig holds the lockout and renewal policy.
type SessionConfig struct {
	WarningThreshold     int           `yaml:"warningThreshold,omitempty" env:"DESKAUTH_SESSION_WARNING_THRESHOLD"`
	LockoutThreshold     int           `yaml:"lockoutThreshold,omitempty" env:"DESKAUTH_SESSION_LOCKOUT_THRESHOLD"`
	LockoutDuration      time.Duration `yaml:"lockoutDuration,omitempty" env:"DESKAUTH_SESSION_LOCKOUT_DURATION"`
	RenewalInterval      time.Duration `yaml:"renewalInterval,omitempty" env:"DESKAUTH_SESSION_RENEWAL_INTERVAL"`
	DefaultTokenLifetime time.Duration `yaml:"defaultTokenLifetime,omitempty" env:"DESKAUTH_SESSION_TOKEN_LIFETIME"`
	MFA                  MFAConfig     `yaml:"mfa"`
}

// MFAConfig makes the second-factor failure policy explicit.
type MFAConfig struct {
	// CountTowardLockout adds every rejected code to the password failure
	// counter as well.
	CountTowardLockout bool `yaml:"countTowardLockout" env:"DESKAUTH_MFA_COUNT_TOWARD_LOCKOUT"`
	// MaxAttempts abandons the challenge after this many rejected codes.
	// Zero means unlimited.
	MaxAttempts int `yaml:"maxAttempts" env:"DESKAUTH_MFA_MAX_ATTEMPTS"`
}

// StorageConfig selects where credentials and local state are kept.
type StorageConfig struct {
	Backend string `yaml:"backend,omitempty" env:"DESKAUTH_STORAGE_BACKEND"`
	Dir     string `yaml:"dir,omitempty" env:"DESKAUTH_STORAGE_DIR"`
}

// TelemetryConfig enables OTLP trace export when OTLPEndpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" env:"DESKAUTH_OTEL_ENDPOINT"`
	ServiceName  string `yaml:"serviceName,omitempty" env:"DESKAUTH_OTEL_SERVICE_NAME"`
}

// LogConfig controls pkg/logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" env:"DESKAUTH_LOG_LEVEL"`
	Format string `yaml:"format,omitempty" env:"DESKAUTH_LOG_FORMAT"`
}
