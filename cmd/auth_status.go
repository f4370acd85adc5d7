package cmd

import (
	"context"
	"time"

	"deskauth/internal/app"
	"deskauth/internal/cli"
	"deskauth/pkg/auth"
	"deskauth/pkg/logging"

	"github.com/spf13/cobra"
)

// DefaultStatusCheckTimeout bounds the server check made by auth status.
const DefaultStatusCheckTimeout = 10 * time.Second

var statusOffline bool

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show who is signed in, when the access token expires and whether
logins are currently locked.

The stored session is verified with the server unless --offline is given.
A session the server no longer accepts is reported as signed out.

Examples:
  deskauth auth status
  deskauth auth status -o json
  deskauth auth status --offline`,
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().BoolVar(&statusOffline, "offline", false, "Do not verify the session with the server")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		m := a.Manager()
		if m.IsAuthenticated() && !statusOffline {
			verifyCtx, cancel := context.WithTimeout(ctx, DefaultStatusCheckTimeout)
			_, err := m.RefreshProfile(verifyCtx)
			cancel()
			switch {
			case err == nil:
			case auth.KindOf(err) == auth.KindNotAuthenticated:
				// The server ended the session; drop it locally as well.
				if lerr := m.Logout(ctx); lerr != nil {
					logging.Warn("CLI", "Failed to clear rejected session: %v", lerr)
				}
			default:
				logging.Warn("CLI", "Could not verify the session: %v", err)
			}
		}
		return cli.NewPrinter(&rootFlags, cmd.OutOrStdout()).PrintStatus(m.Snapshot())
	})
}
