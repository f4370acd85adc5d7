package cmd

import (
	"context"
	"errors"
	"fmt"

	"deskauth/internal/app"
	"deskauth/internal/cli"
	"deskauth/internal/console"
	"deskauth/pkg/auth"

	"github.com/spf13/cobra"
)

// Login-specific flags
var (
	loginUsername string
	loginPassword string
	loginMFACode  string
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with username and password",
	Long: `Sign in to the service desk with username and password.

When the account requires a second factor you are asked for the six-digit
verification code. After five rejected passwords logins are locked for
thirty minutes; both limits are set in the session section of config.yaml.

Examples:
  deskauth auth login                     # Prompt for username and password
  deskauth auth login -u ann              # Prompt for the password only
  deskauth auth login -u ann --code 123456`,
	RunE: runAuthLogin,
}

// authSSOCmd represents the auth sso command
var authSSOCmd = &cobra.Command{
	Use:   "sso",
	Short: "Sign in through the organization directory",
	Long: `Sign in through the organization's identity provider.

A device code is shown which you enter in a browser on any device. Once the
directory confirms the sign-in the session is renewed silently in the
background while the console is open.

Examples:
  deskauth auth sso`,
	RunE: runAuthSSO,
}

func init() {
	authLoginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted when omitted)")
	authLoginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted; avoid on shared machines)")
	authLoginCmd.Flags().StringVar(&loginMFACode, "code", "", "Verification code for accounts with a second factor")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		in := console.LoginInput{
			Username: loginUsername,
			Password: loginPassword,
			Code:     loginMFACode,
		}
		if !rootFlags.Quiet {
			in.Progress = cmd.ErrOrStderr()
		}
		user, err := console.PasswordLogin(ctx, a.Manager(), newPrompter(cmd), cmd.ErrOrStderr(), in)
		if err != nil {
			return err
		}
		printSignedIn(cmd, user)
		return nil
	})
}

func runAuthSSO(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		if !a.Settings().Identity.Enabled() {
			return errors.New("no identity provider is configured; set identity.clientID and identity.tenantID in config.yaml")
		}

		user, err := a.Manager().LoginWithIdentityProvider(ctx, console.DevicePrompt(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		printSignedIn(cmd, user)
		return nil
	})
}

func printSignedIn(cmd *cobra.Command, user *auth.User) {
	if user == nil {
		authPrintln(cmd, cli.FormatSuccess("Signed in"))
		return
	}
	authPrintln(cmd, cli.FormatSuccess(fmt.Sprintf("Signed in as %s (%s)", user.Name, user.Role)))
}
