package console

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/oauth2"

	"deskauth/internal/cli"
	"deskauth/internal/session"
	"deskauth/pkg/auth"
)

// Prompter reads answers from the user.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	// ReadSecret reads an answer without echoing it where possible.
	ReadSecret(prompt string) (string, error)
}

// LoginInput holds what is already known about a password login. Missing
// values are prompted for.
type LoginInput struct {
	Username string
	Password string
	Code     string
	// Progress receives a spinner while the server is asked. Nil disables it.
	Progress io.Writer
}

// PasswordLogin runs a password login including a second-factor challenge.
// Rejected verification codes are prompted for again until one is accepted
// or the challenge is abandoned. Progress messages go to out.
func PasswordLogin(ctx context.Context, manager *session.Manager, p Prompter, out io.Writer, in LoginInput) (*auth.User, error) {
	var err error
	if in.Username == "" {
		if in.Username, err = p.ReadLine("Username: "); err != nil {
			return nil, err
		}
	}
	if in.Password == "" {
		if in.Password, err = p.ReadSecret("Password: "); err != nil {
			return nil, err
		}
	}

	var res *session.LoginResult
	err = withProgress(in.Progress, "Signing in...", func() error {
		var lerr error
		res, lerr = manager.Login(ctx, in.Username, in.Password)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	if res.Outcome != session.OutcomeMFARequired {
		return res.User, nil
	}

	fmt.Fprintln(out, "A verification code is required.")
	code := in.Code
	for {
		if code == "" {
			if code, err = p.ReadLine("Verification code: "); err != nil {
				return nil, err
			}
		}

		mres, err := manager.VerifyMFA(ctx, code)
		if err == nil {
			return mres.User, nil
		}
		if mres == nil || mres.Abandoned || auth.KindOf(err) != auth.KindMfaInvalid {
			return nil, err
		}

		msg := mres.Message
		if mres.RemainingAttempts > 0 {
			msg = fmt.Sprintf("%s %d attempt(s) remaining.", msg, mres.RemainingAttempts)
		}
		fmt.Fprintln(out, cli.FormatWarning(msg))
		code = ""
	}
}

func withProgress(w io.Writer, msg string, fn func() error) error {
	if w == nil {
		return fn()
	}
	return cli.WithSpinner(w, false, msg, fn)
}

// DevicePrompt returns a callback that tells the user where to enter the
// directory's device code.
func DevicePrompt(w io.Writer) func(*oauth2.DeviceAuthResponse) {
	return func(da *oauth2.DeviceAuthResponse) {
		uri := da.VerificationURIComplete
		if uri == "" {
			uri = da.VerificationURI
		}
		fmt.Fprintf(w, "To sign in, open %s and enter the code %s\n", text.Bold.Sprint(uri), text.Bold.Sprint(da.UserCode))
	}
}
