// Package cli provides the presentation helpers shared by the deskauth
// commands.
//
// Printer renders the authentication status, the active session list and
// the signed-in user's permissions as a table, JSON or YAML. TranslateError
// turns session errors into errors that carry guidance for the terminal,
// such as how to sign in again after the session expired. CommandFlags
// registers the persistent flags every command shares and converts them to
// an app.Config.
package cli
