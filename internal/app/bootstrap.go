package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"deskauth/internal/config"
	"deskauth/internal/session"
	"deskauth/internal/telemetry"
	"deskauth/pkg/logging"
)

// Application is the bootstrapped deskauth process: configuration, logging,
// tracing and the services built from them.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load configuration, initialise logging and tracing,
//     build services and restore a persisted session
//  2. Execution phase: run a command against the session Manager
type Application struct {
	config   *Config
	settings config.Config
	services *Services

	shutdownTelemetry func(context.Context) error
}

// NewApplication creates and initializes a new application instance with
// the provided configuration. It returns an error if the configuration is
// invalid or a service cannot be opened.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	logOutput := cfg.LogOutput
	if logOutput == nil {
		logOutput = os.Stderr
	}
	if cfg.Silent {
		logOutput = io.Discard
	}
	bootLevel := logging.LevelWarn
	if cfg.Debug {
		bootLevel = logging.LevelDebug
	}
	logging.InitForCLI(bootLevel, logOutput)

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	settings, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", configPath)
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	applyOverrides(&settings, cfg)

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(settings.Log.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(logging.Options{
		Level:  level,
		Format: logging.Format(settings.Log.Format),
		Output: logOutput,
	})
	logging.Debug("Bootstrap", "Loaded configuration from %s", configPath)

	shutdown, err := telemetry.Setup(ctx, settings.Telemetry, cfg.Version)
	if err != nil {
		// Tracing is optional; carry on without it.
		logging.Warn("Bootstrap", "Tracing disabled: %v", err)
	}

	services, err := InitializeServices(settings)
	if err != nil {
		_ = shutdown(ctx)
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := services.Manager.Restore(ctx); err != nil {
		logging.Warn("Bootstrap", "Could not restore the previous session: %v", err)
	}

	return &Application{
		config:            cfg,
		settings:          settings,
		services:          services,
		shutdownTelemetry: shutdown,
	}, nil
}

func applyOverrides(settings *config.Config, cfg *Config) {
	if cfg.APIBaseURL != "" {
		settings.API.BaseURL = cfg.APIBaseURL
	}
	if cfg.StorageBackend != "" {
		settings.Storage.Backend = cfg.StorageBackend
	}
	if cfg.LogLevel != "" {
		settings.Log.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		settings.Log.Format = cfg.LogFormat
	}
}

// Manager returns the session Manager.
func (a *Application) Manager() *session.Manager {
	return a.services.Manager
}

// Services returns the initialised services.
func (a *Application) Services() *Services {
	return a.services
}

// Settings returns the effective configuration.
func (a *Application) Settings() config.Config {
	return a.settings
}

// Close stops background work, closes the credential store and flushes
// pending spans. The persisted session is left in place.
func (a *Application) Close(ctx context.Context) error {
	return errors.Join(
		a.services.Close(),
		a.shutdownTelemetry(ctx),
	)
}
