// Package console implements the interactive deskauth console.
//
// The console keeps one session Manager alive for as long as it runs, so
// the renewal scheduler keeps the access token fresh in the background. The
// prompt shows who is signed in and changes when the session ends, whether
// by a command, a failed renewal or a sign-out in another window.
//
// PasswordLogin and DevicePrompt are shared with the one-shot commands.
package console
