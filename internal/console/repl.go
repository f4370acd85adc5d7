package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"

	"deskauth/internal/cli"
	"deskauth/internal/session"
	"deskauth/pkg/logging"
	dstrings "deskauth/pkg/strings"
)

// Options configures a REPL.
type Options struct {
	// Out receives command output. Defaults to the readline stdout.
	Out io.Writer
	// Stdin overrides the terminal input, e.g. in tests.
	Stdin io.ReadCloser
	// HistoryFile keeps entered lines across sessions. Empty disables history.
	HistoryFile string
	// Endpoint is the backend base URL named in connection errors.
	Endpoint string
	// Format selects how status and session lists are printed.
	Format cli.OutputFormat
	// SignOutDirectory forgets cached directory accounts on logout. May be nil.
	SignOutDirectory func() error
}

// REPL is the interactive console. The session stays alive while it runs:
// the renewal scheduler keeps the token fresh and the prompt follows the
// session state.
type REPL struct {
	manager  *session.Manager
	opts     Options
	registry *Registry

	rl       *readline.Instance
	out      io.Writer
	prompter Prompter

	mu   sync.Mutex
	last session.Snapshot
	// running is set while a command executes and owns the prompt.
	running bool
}

// New creates a console for manager.
func New(manager *session.Manager, opts Options) *REPL {
	if opts.Format == "" {
		opts.Format = cli.OutputFormatTable
	}
	r := &REPL{
		manager:  manager,
		opts:     opts,
		registry: NewRegistry(),
		out:      opts.Out,
		last:     manager.Snapshot(),
	}
	r.registerCommands()
	return r
}

// Run reads and executes commands until exit, EOF or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            buildPrompt(r.manager.Snapshot()),
		HistoryFile:       r.opts.HistoryFile,
		AutoComplete:      r.createCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             r.opts.Stdin,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	closeRL := sync.OnceFunc(func() { rl.Close() })
	defer closeRL()
	r.rl = rl
	if r.out == nil {
		r.out = rl.Stdout()
	}
	r.prompter = &readlinePrompter{rl: rl}

	updates, unsubscribe := r.manager.Subscribe()
	defer unsubscribe()
	go r.follow(ctx, updates)

	// Closing readline unblocks Readline when ctx ends.
	stop := context.AfterFunc(ctx, closeRL)
	defer stop()

	fmt.Fprintln(r.out, "deskauth console. Type 'help' for available commands. Use TAB for completion.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		r.setRunning(true)
		err = r.executeCommand(ctx, input)
		r.setRunning(false)
		if err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			fmt.Fprintln(r.out, text.FgRed.Sprint(cli.FormatError(cli.TranslateError(err, r.opts.Endpoint))))
		}
		rl.SetPrompt(buildPrompt(r.manager.Snapshot()))
	}
}

// executeCommand parses input and runs the matching command.
func (r *REPL) executeCommand(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	cmd, ok := r.registry.Get(strings.ToLower(parts[0]))
	if !ok {
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", parts[0])
	}
	return cmd.Execute(ctx, parts[1:])
}

// follow keeps the prompt in step with the session and reports sessions
// that ended without a command, e.g. after a failed renewal.
func (r *REPL) follow(ctx context.Context, updates <-chan session.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			r.mu.Lock()
			prev := r.last
			r.last = snap
			running := r.running
			r.mu.Unlock()

			if r.rl != nil && !running {
				r.rl.SetPrompt(buildPrompt(snap))
				r.rl.Refresh()
			}
			if msg := noticeFor(prev, snap); msg != "" {
				logging.Debug("Console", "Session ended in the background: %s", msg)
				fmt.Fprintln(r.out, text.FgYellow.Sprint(cli.FormatWarning(msg)))
			}
		}
	}
}

func (r *REPL) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}

// noticeFor returns the message to show when next ended the session that
// prev had, or "" when nothing needs to be said.
func noticeFor(prev, next session.Snapshot) string {
	if !prev.IsAuthenticated() || next.IsAuthenticated() {
		return ""
	}
	return next.Error
}

func buildPrompt(s session.Snapshot) string {
	switch {
	case s.IsAuthenticated():
		return fmt.Sprintf("deskauth %s> ", dstrings.TruncateMiddle(s.User.Name, dstrings.PromptNameMaxLen))
	case s.State == session.StateMFAPending:
		return "deskauth [MFA]> "
	case s.State == session.StateLockedOut:
		return "deskauth [LOCKED]> "
	default:
		return "deskauth [signed out]> "
	}
}

func (r *REPL) createCompleter() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range r.registry.Names() {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// readlinePrompter prompts through the console's readline instance.
type readlinePrompter struct {
	rl *readline.Instance
}

// ReadLine changes the prompt; the console restores it after the command.
func (p *readlinePrompter) ReadLine(prompt string) (string, error) {
	p.rl.SetPrompt(prompt)
	line, err := p.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *readlinePrompter) ReadSecret(prompt string) (string, error) {
	b, err := p.rl.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
