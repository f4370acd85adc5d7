package cli

import (
	"deskauth/internal/app"
	"deskauth/internal/config"

	"github.com/spf13/cobra"
)

// CommandFlags holds the flag values shared by every deskauth command.
type CommandFlags struct {
	// OutputFormat specifies the desired output format (table, json, yaml)
	OutputFormat string
	// NoHeaders suppresses the header row in table output
	NoHeaders bool
	// Quiet suppresses progress indicators and non-essential output
	Quiet bool
	// Debug enables debug logging
	Debug bool
	// ConfigPath specifies a custom configuration directory path
	ConfigPath string
	// APIBaseURL overrides the backend base URL from config.yaml
	APIBaseURL string
	// StorageBackend overrides the credential store backend (file, sqlite)
	StorageBackend string
	// LogLevel overrides the log level (debug, info, warn, error)
	LogLevel string
	// LogFormat overrides the log format (text, json)
	LogFormat string
}

// RegisterCommonFlags registers the shared flags as persistent flags on cmd.
//
// The registered flags are:
//   - --output/-o: Output format (table, json, yaml), default: "table"
//   - --no-headers: Suppress header row in table output
//   - --quiet/-q: Suppress non-essential output
//   - --debug: Enable debug logging
//   - --config-path: Configuration directory
//   - --api-url: ITSM backend base URL (env: DESKAUTH_API_BASE_URL)
//   - --storage: Credential store backend (env: DESKAUTH_STORAGE_BACKEND)
//   - --log-level: Log level (env: DESKAUTH_LOG_LEVEL)
//   - --log-format: Log format (env: DESKAUTH_LOG_FORMAT)
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", string(OutputFormatTable), "Output format (table, json, yaml)")
	cmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header row in table output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	cmd.PersistentFlags().StringVar(&flags.APIBaseURL, "api-url", "", "ITSM backend base URL (env: DESKAUTH_API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&flags.StorageBackend, "storage", "", "Credential store backend: file or sqlite (env: DESKAUTH_STORAGE_BACKEND)")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error (env: DESKAUTH_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json (env: DESKAUTH_LOG_FORMAT)")
}

// Validate checks flag values that cobra cannot check on its own.
func (f *CommandFlags) Validate() error {
	return ValidateOutputFormat(f.OutputFormat)
}

// ToAppConfig converts the flags to the application configuration.
func (f *CommandFlags) ToAppConfig(version string) *app.Config {
	cfg := app.NewConfig(f.Debug, f.ConfigPath)
	cfg.Silent = f.Quiet && !f.Debug
	cfg.APIBaseURL = f.APIBaseURL
	cfg.StorageBackend = f.StorageBackend
	cfg.LogLevel = f.LogLevel
	cfg.LogFormat = f.LogFormat
	cfg.Version = version
	return cfg
}
