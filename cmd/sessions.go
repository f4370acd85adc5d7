package cmd

import (
	"context"

	"deskauth/internal/app"
	"deskauth/internal/cli"
	"deskauth/pkg/auth"

	"github.com/spf13/cobra"
)

// sessionsCmd represents the sessions command group
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and revoke your active sessions",
	Long: `List the sessions signed in with your account and revoke the ones
you no longer use.

Examples:
  deskauth sessions list
  deskauth sessions revoke s-42`,
}

// sessionsListCmd represents the sessions list command
var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List active sessions",
	RunE:    runSessionsList,
}

// sessionsRevokeCmd represents the sessions revoke command
var sessionsRevokeCmd = &cobra.Command{
	Use:   "revoke SESSION_ID",
	Short: "Revoke a session",
	Long: `Revoke a session by its ID.

Revoking the session this machine is using signs you out here as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsRevoke,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRevokeCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		var sessions []auth.Session
		err := cli.WithSpinner(cmd.ErrOrStderr(), rootFlags.Quiet || rootFlags.OutputFormat != string(cli.OutputFormatTable), "Loading sessions...", func() error {
			var ferr error
			sessions, ferr = a.Manager().FetchSessions(ctx)
			return ferr
		})
		if err != nil {
			return err
		}
		return cli.NewPrinter(&rootFlags, cmd.OutOrStdout()).PrintSessions(sessions)
	})
}

func runSessionsRevoke(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		m := a.Manager()
		if err := m.RevokeSession(ctx, args[0]); err != nil {
			return err
		}
		if !m.IsAuthenticated() {
			authPrintln(cmd, cli.FormatSuccess("Session revoked; you have been signed out"))
			return nil
		}
		authPrintln(cmd, cli.FormatSuccess("Session "+args[0]+" revoked"))
		return nil
	})
}
