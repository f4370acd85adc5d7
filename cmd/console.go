package cmd

import (
	"context"
	"path/filepath"

	"deskauth/internal/app"
	"deskauth/internal/cli"
	"deskauth/internal/console"

	"github.com/spf13/cobra"
)

// historyFileName is stored in the configuration directory.
const historyFileName = "console_history"

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the interactive console",
	Long: `Open an interactive console that keeps your session alive.

While the console runs the access token is renewed silently before it
expires, and signing out in another window signs the console out too.

Type 'help' inside the console for the available commands.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	return runWithApplication(cmd, func(ctx context.Context, a *app.Application) error {
		opts := console.Options{
			HistoryFile: filepath.Join(rootFlags.ConfigPath, historyFileName),
			Endpoint:    a.Settings().API.BaseURL,
			Format:      cli.OutputFormat(rootFlags.OutputFormat),
		}
		if idp := a.Services().IdP; idp != nil {
			opts.SignOutDirectory = idp.SignOut
		}
		repl := console.New(a.Manager(), opts)
		return a.RunInteractive(ctx, repl.Run)
	})
}
