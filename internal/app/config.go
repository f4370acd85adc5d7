package app

import (
	"io"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Silent discards all log output.
	Silent bool

	// Custom configuration directory (optional). Defaults to
	// ~/.config/deskauth.
	ConfigPath string

	// Command line overrides, applied after config.yaml and environment.
	APIBaseURL     string
	StorageBackend string
	LogLevel       string
	LogFormat      string

	// Version is reported to the telemetry resource.
	Version string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
