// Package app provides application bootstrap and lifecycle management for
// deskauth.
//
// # Architecture Overview
//
// The package is the composition root of the binary. It has three parts:
//
//  1. **Bootstrap (`bootstrap.go`)**: loads configuration, initialises
//     logging and tracing, and builds the services
//  2. **Services (`services.go`)**: opens the credential store, creates the
//     backend client, the identity provider adapter and the session Manager
//  3. **Modes (`modes.go`)**: long-running execution where the renewal
//     scheduler works and credential changes made by other processes are
//     picked up
//
// # Configuration Loading
//
// Configuration is layered:
//  1. Built-in defaults
//  2. `~/.config/deskauth/config.yaml` (or the directory given with
//     `--config-path`)
//  3. `DESKAUTH_*` environment variables
//  4. Command line overrides carried in Config
//
// The merged configuration is validated before anything is opened.
//
// # Usage
//
//	cfg := app.NewConfig(false, "")
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("bootstrap failed: %w", err)
//	}
//	defer application.Close(ctx)
//	manager := application.Manager()
//
// There is exactly one session Manager per Application. Commands receive it
// from the Application rather than through a package-level singleton.
package app
