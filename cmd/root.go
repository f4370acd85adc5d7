package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"deskauth/internal/app"
	"deskauth/internal/cli"
	"deskauth/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates credentials or a verification code were rejected.
	ExitCodeAuthFailed = 3
	// ExitCodeAccountLocked indicates logins are locked after too many failures.
	ExitCodeAccountLocked = 4
)

// rootFlags holds the persistent flags shared by all commands.
var rootFlags cli.CommandFlags

// rootCmd represents the base command for the deskauth application.
var rootCmd = &cobra.Command{
	Use:   "deskauth",
	Short: "Sign in to the IT service desk from the terminal",
	Long: `deskauth signs you in to the IT service desk and keeps the session alive.

It handles password and second-factor logins, directory sign-in through the
organization's identity provider, account lockout after repeated failures,
and silent token renewal while the console is open.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	// Errors are printed by Execute so that ExitError stays silent.
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return rootFlags.Validate()
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "deskauth version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, cli.FormatError(err))
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var locked *cli.AccountLockedError
	if errors.As(err, &locked) {
		return ExitCodeAccountLocked
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// runWithApplication bootstraps the application, runs fn against it and
// shuts it down again. Session errors are translated into CLI errors.
func runWithApplication(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := rootFlags.ToAppConfig(GetVersion())
	cfg.LogOutput = cmd.ErrOrStderr()
	a, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			logging.Warn("CLI", "Shutdown incomplete: %v", err)
		}
	}()

	return cli.TranslateError(fn(ctx, a), a.Settings().API.BaseURL)
}

func init() {
	cli.RegisterCommonFlags(rootCmd, &rootFlags)
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
