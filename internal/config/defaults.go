package config

import "time"

const (
	DefaultAPITimeout           = 30 * time.Second
	DefaultRenewalMargin        = 300 * time.Second
	DefaultWarningThreshold     = 3
	DefaultLockoutThreshold     = 5
	DefaultLockoutDuration      = 30 * time.Minute
	DefaultRenewalInterval      = 60 * time.Second
	DefaultTokenLifetime        = time.Hour
	DefaultMFAMaxAttempts       = 5
	DefaultTelemetryServiceName = "deskauth"
)

// DefaultScopes is the fixed scope list requested from the directory.
var DefaultScopes = []string{"https://graph.microsoft.com/.default", "offline_access"}

// GetDefaultConfig returns the configuration used before any file or
// environment overlay is applied.
func GetDefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: DefaultAPITimeout,
		},
		Identity: IdentityConfig{
			Scopes:             append([]string(nil), DefaultScopes...),
			RenewalMargin:      DefaultRenewalMargin,
			DefaultRole:        "general_user",
			DefaultPermissions: []string{"read", "write"},
		},
		Session: SessionConfig{
			WarningThreshold:     DefaultWarningThreshold,
			LockoutThreshold:     DefaultLockoutThreshold,
			LockoutDuration:      DefaultLockoutDuration,
			RenewalInterval:      DefaultRenewalInterval,
			DefaultTokenLifetime: DefaultTokenLifetime,
			MFA: MFAConfig{
				CountTowardLockout: false,
				MaxAttempts:        DefaultMFAMaxAttempts,
			},
		},
		Storage: StorageConfig{
			Backend: StorageBackendFile,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultTelemetryServiceName,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
