// Package credstore persists the signed-in user's tokens and profile.
//
// A Record is stored as four entries (access_token, refresh_token,
// token_expiry, user) by one of three backends:
//
//   - FileStore: a 0600 JSON file replaced atomically via rename
//   - SQLiteStore: a key/value table written in one transaction
//   - MemoryStore: process memory, for tests and ephemeral sessions
//
// Token values are wrapped in Secret and never appear in logs. Every
// mutation emits a SECURITY_AUDIT log line without token material.
//
// Watcher reports changes made by other processes sharing the directory.
package credstore
