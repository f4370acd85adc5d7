// Package config provides configuration management for deskauth.
//
// Configuration is loaded from a single directory. The default is
// ~/.config/deskauth; commands accept --config-path to point elsewhere.
//
// # Layering
//
// The effective configuration is built in three steps:
//  1. built-in defaults (GetDefaultConfig)
//  2. <configPath>/config.yaml, when present
//  3. DESKAUTH_* environment variables
//
// Later layers win. A missing config.yaml is not an error.
//
// # Example
//
//	api:
//	  baseURL: https://itsm.example.com
//	identity:
//	  clientID: 00000000-0000-0000-0000-000000000000
//	  tenantID: contoso.onmicrosoft.com
//	session:
//	  lockoutThreshold: 5
//	  lockoutDuration: 30m
//	  mfa:
//	    countTowardLockout: false
//	    maxAttempts: 5
//	storage:
//	  backend: sqlite
//
// The same directory holds the credential store, the identity provider
// account cache and the local lockout state, unless storage.dir says
// otherwise.
package config
