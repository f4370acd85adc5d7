// Package logging provides the structured logger shared by every deskauth
// package.
//
// It is a thin layer over log/slog that tags each record with a subsystem
// name, so output from the session manager, the identity provider adapter
// and the credential store can be filtered independently.
//
// # Usage
//
//	logging.Init(logging.Options{Level: logging.LevelInfo, Format: logging.FormatText})
//
//	logging.Info("Session", "Login succeeded for %s", username)
//	logging.Warn("Backend", "Logout notification failed: %v", err)
//	logging.Error("Renewal", err, "Silent token renewal failed")
//
// # Audit Logging
//
// Security relevant transitions (login, lockout, logout, credential writes)
// are recorded with Audit, which emits a "SECURITY_AUDIT:" prefixed record
// with an event attribute:
//
//	logging.Audit("login_failed", "username", username, "attempts", n)
//
// Token values are never logged.
package logging
