package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deskauth/internal/cli"
	"deskauth/pkg/auth"
	"deskauth/pkg/logging"
)

func (r *REPL) registerCommands() {
	r.registry.Register("help", &funcCommand{
		usage:       "help",
		description: "Show available commands",
		aliases:     []string{"?"},
		run:         r.runHelp,
	})
	r.registry.Register("status", &funcCommand{
		usage:       "status",
		description: "Show authentication status",
		aliases:     []string{"whoami"},
		run: func(ctx context.Context, args []string) error {
			return r.printer().PrintStatus(r.manager.Snapshot())
		},
	})
	r.registry.Register("login", &funcCommand{
		usage:       "login [username]",
		description: "Sign in with username and password",
		run:         r.runLogin,
	})
	r.registry.Register("sso", &funcCommand{
		usage:       "sso",
		description: "Sign in through the organization directory",
		run: func(ctx context.Context, args []string) error {
			user, err := r.manager.LoginWithIdentityProvider(ctx, DevicePrompt(r.out))
			if err != nil {
				return err
			}
			r.signedIn(user)
			return nil
		},
	})
	r.registry.Register("logout", &funcCommand{
		usage:       "logout",
		description: "Sign out and remove stored credentials",
		run:         r.runLogout,
	})
	r.registry.Register("refresh", &funcCommand{
		usage:       "refresh",
		description: "Exchange the refresh token for a new access token",
		run: func(ctx context.Context, args []string) error {
			if err := r.manager.RefreshToken(ctx); err != nil {
				return err
			}
			fmt.Fprintln(r.out, cli.FormatSuccess("Token refreshed"))
			return nil
		},
	})
	r.registry.Register("sessions", &funcCommand{
		usage:       "sessions",
		description: "List active sessions",
		run: func(ctx context.Context, args []string) error {
			sessions, err := r.manager.FetchSessions(ctx)
			if err != nil {
				return err
			}
			return r.printer().PrintSessions(sessions)
		},
	})
	r.registry.Register("revoke", &funcCommand{
		usage:       "revoke <session-id>",
		description: "Revoke a session",
		run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("usage: revoke <session-id>")
			}
			if err := r.manager.RevokeSession(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(r.out, cli.FormatSuccess("Session "+args[0]+" revoked"))
			return nil
		},
	})
	r.registry.Register("can", &funcCommand{
		usage:       "can <permission>...",
		description: "Check whether you hold all given permissions",
		run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("usage: can <permission>...")
			}
			if !r.manager.IsAuthenticated() {
				return auth.NewError(auth.KindNotAuthenticated, "You are not logged in.", nil)
			}
			if r.manager.HasAllPermissions(args...) {
				fmt.Fprintln(r.out, "yes")
			} else {
				fmt.Fprintln(r.out, "no")
			}
			return nil
		},
	})
	r.registry.Register("permissions", &funcCommand{
		usage:       "permissions",
		description: "List your permissions",
		aliases:     []string{"perms"},
		run: func(ctx context.Context, args []string) error {
			user := r.manager.CurrentUser()
			if user == nil {
				return auth.NewError(auth.KindNotAuthenticated, "You are not logged in.", nil)
			}
			return r.printer().PrintPermissions(user)
		},
	})
	r.registry.Register("exit", &funcCommand{
		usage:       "exit",
		description: "Leave the console; the session stays signed in",
		aliases:     []string{"quit"},
		run: func(ctx context.Context, args []string) error {
			return errExit
		},
	})
}

func (r *REPL) printer() *cli.Printer {
	return &cli.Printer{Format: r.opts.Format, Out: r.out}
}

func (r *REPL) runHelp(ctx context.Context, args []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	for _, name := range r.registry.Names() {
		cmd, _ := r.registry.Get(name)
		line := fmt.Sprintf("  %-22s %s", cmd.Usage(), cmd.Description())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			line += fmt.Sprintf(" (alias: %s)", strings.Join(aliases, ", "))
		}
		fmt.Fprintln(r.out, line)
	}
	return nil
}

func (r *REPL) runLogin(ctx context.Context, args []string) error {
	in := LoginInput{}
	if len(args) > 0 {
		in.Username = args[0]
	}
	user, err := PasswordLogin(ctx, r.manager, r.prompter, r.out, in)
	if err != nil {
		return err
	}
	r.signedIn(user)
	return nil
}

func (r *REPL) runLogout(ctx context.Context, args []string) error {
	if !r.manager.IsAuthenticated() {
		fmt.Fprintln(r.out, "Not signed in.")
		return nil
	}
	if err := r.manager.Logout(ctx); err != nil {
		return err
	}
	if r.opts.SignOutDirectory != nil {
		if err := r.opts.SignOutDirectory(); err != nil {
			logging.Warn("Console", "Failed to forget directory accounts: %v", err)
		}
	}
	fmt.Fprintln(r.out, cli.FormatSuccess("Signed out"))
	return nil
}

func (r *REPL) signedIn(user *auth.User) {
	if user == nil {
		fmt.Fprintln(r.out, cli.FormatSuccess("Signed in"))
		return
	}
	fmt.Fprintln(r.out, cli.FormatSuccess(fmt.Sprintf("Signed in as %s (%s)", user.Name, user.Role)))
}
