package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deskauth/internal/app"
	"deskauth/internal/backend"
	"deskauth/internal/cli"
	"deskauth/pkg/auth"
	"deskauth/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	logoutDirectory bool

	canAny bool

	profileName   string
	profileEmail  string
	profileAvatar string
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your service desk session",
	Long: `Manage your service desk session.

Examples:
  deskauth auth login                  # Sign in with username and password
  deskauth auth sso                    # Sign in through the organization directory
  deskauth auth status                 # Show authentication status
  deskauth auth refresh                # Exchange the refresh token now
  deskauth auth can tickets.write      # Check a permission (exit code 0 or 1)
  deskauth auth logout                 # Sign out`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove stored credentials",
	Long: `Sign out of the service desk.

The server is told to end the session and the stored credentials are
removed. Signing out succeeds even when the server cannot be reached.

Examples:
  deskauth auth logout                 # Sign out
  deskauth auth logout --directory     # Also forget cached directory accounts`,
	RunE: runAuthLogout,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force token refresh",
	Long: `Exchange the stored refresh token for a new access token.

If the server rejects the refresh token you are signed out.`,
	RunE: runAuthRefresh,
}

// authCanCmd represents the auth can command
var authCanCmd = &cobra.Command{
	Use:   "can PERMISSION...",
	Short: "Check whether the signed-in user holds permissions",
	Long: `Check whether the signed-in user holds the given permissions.

All permissions must be held unless --any is given. The exit code is 0 when
the check passes and 1 otherwise, so the command can guard scripts.

Examples:
  deskauth auth can tickets.write
  deskauth auth can --any admin tickets.assign`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAuthCan,
}

// authPermissionsCmd represents the auth permissions command
var authPermissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "List the signed-in user's permissions",
	RunE:  runAuthPermissions,
}

// authProfileCmd represents the auth profile command
var authProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your profile",
	Long: `Reload your profile from the server, or update it.

Examples:
  deskauth auth profile                        # Reload and show the profile
  deskauth auth profile --name "Ann Agent"     # Change the display name`,
	RunE: runAuthProfile,
}

// authPasswordCmd represents the auth passwd command
var authPasswordCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change your password",
	RunE:  runAuthPassword,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authSSOCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authCanCmd)
	authCmd.AddCommand(authPermissionsCmd)
	authCmd.AddCommand(authProfileCmd)
	authCmd.AddCommand(authPasswordCmd)

	authLogoutCmd.Flags().BoolVar(&logoutDirectory, "directory", false, "Also forget accounts cached for directory sign-in")
	authCanCmd.Flags().BoolVar(&canAny, "any", false, "Pass when any one of the permissions is held")
	authProfileCmd.Flags().StringVar(&profileName, "name", "", "New display name")
	authProfileCmd.Flags().StringVar(&profileEmail, "email", "", "New email address")
	authProfileCmd.Flags().StringVar(&profileAvatar, "avatar", "", "New avatar URL")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		wasSignedIn := a.Manager().IsAuthenticated()
		if err := a.Manager().Logout(ctx); err != nil {
			return err
		}
		if logoutDirectory && a.Services().IdP != nil {
			if err := a.Services().IdP.SignOut(); err != nil {
				logging.Warn("CLI", "Failed to forget directory accounts: %v", err)
			}
		}
		if !wasSignedIn {
			authPrintln(cmd, "Not signed in.")
			return nil
		}
		authPrintln(cmd, cli.FormatSuccess("Signed out"))
		return nil
	})
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		err := cli.WithSpinner(cmd.ErrOrStderr(), rootFlags.Quiet, "Refreshing token...", func() error {
			return a.Manager().RefreshToken(ctx)
		})
		if err != nil {
			return err
		}
		snap := a.Manager().Snapshot()
		authPrintln(cmd, cli.FormatSuccess(fmt.Sprintf("Token refreshed, valid until %s", snap.TokenExpiry.Local().Format("15:04"))))
		return nil
	})
}

func runAuthCan(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		m := a.Manager()
		if !m.IsAuthenticated() {
			return auth.NewError(auth.KindNotAuthenticated, "You are not logged in.", nil)
		}

		allowed := m.HasAllPermissions(args...)
		if canAny {
			allowed = m.HasAnyPermission(args...)
		}
		if !allowed {
			authPrintln(cmd, "no")
			return &cli.ExitError{Code: ExitCodeError}
		}
		authPrintln(cmd, "yes")
		return nil
	})
}

func runAuthPermissions(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		user := a.Manager().CurrentUser()
		if user == nil {
			return auth.NewError(auth.KindNotAuthenticated, "You are not logged in.", nil)
		}
		return cli.NewPrinter(&rootFlags, cmd.OutOrStdout()).PrintPermissions(user)
	})
}

func runAuthProfile(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		var update backend.ProfileUpdate
		if cmd.Flags().Changed("name") {
			update.Name = &profileName
		}
		if cmd.Flags().Changed("email") {
			update.Email = &profileEmail
		}
		if cmd.Flags().Changed("avatar") {
			update.Avatar = &profileAvatar
		}

		var err error
		if update.Name == nil && update.Email == nil && update.Avatar == nil {
			_, err = a.Manager().RefreshProfile(ctx)
		} else {
			_, err = a.Manager().UpdateProfile(ctx, update)
		}
		if err != nil {
			return err
		}
		return cli.NewPrinter(&rootFlags, cmd.OutOrStdout()).PrintStatus(a.Manager().Snapshot())
	})
}

func runAuthPassword(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		if !a.Manager().IsAuthenticated() {
			return auth.NewError(auth.KindNotAuthenticated, "You are not logged in.", nil)
		}

		p := newPrompter(cmd)
		current, err := p.ReadSecret("Current password: ")
		if err != nil {
			return err
		}
		next, err := p.ReadSecret("New password: ")
		if err != nil {
			return err
		}
		confirm, err := p.ReadSecret("Repeat new password: ")
		if err != nil {
			return err
		}
		if next != confirm {
			return errors.New("the new passwords do not match")
		}
		if strings.TrimSpace(next) == "" {
			return errors.New("the new password must not be empty")
		}

		if err := a.Manager().ChangePassword(ctx, current, next); err != nil {
			return err
		}
		authPrintln(cmd, cli.FormatSuccess("Password changed"))
		return nil
	})
}
