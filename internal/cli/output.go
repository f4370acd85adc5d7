package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"deskauth/internal/session"
	"deskauth/pkg/auth"
	dstrings "deskauth/pkg/strings"
)

// OutputFormat represents the supported output formats for CLI commands.
type OutputFormat string

const (
	// OutputFormatTable formats output as a human-readable table
	OutputFormatTable OutputFormat = "table"
	// OutputFormatJSON formats output as JSON
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML formats output as YAML
	OutputFormatYAML OutputFormat = "yaml"
)

// ValidOutputFormats contains all valid output format values.
var ValidOutputFormats = []OutputFormat{
	OutputFormatTable,
	OutputFormatJSON,
	OutputFormatYAML,
}

// ValidateOutputFormat validates that the given format string is a supported output format.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (valid: table, json, yaml)", format)
	}
}

// StatusView is the serializable form of a session snapshot.
type StatusView struct {
	State          string     `json:"state" yaml:"state"`
	User           *UserView  `json:"user,omitempty" yaml:"user,omitempty"`
	TokenExpiry    *time.Time `json:"tokenExpiry,omitempty" yaml:"tokenExpiry,omitempty"`
	FailedAttempts int        `json:"failedAttempts" yaml:"failedAttempts"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty" yaml:"lockedUntil,omitempty"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// UserView is the serializable form of a user.
type UserView struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Email       string   `json:"email" yaml:"email"`
	Role        string   `json:"role" yaml:"role"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// NewStatusView converts a snapshot for printing.
func NewStatusView(s session.Snapshot) StatusView {
	v := StatusView{
		State:          s.State.String(),
		FailedAttempts: s.FailedAttempts,
		Error:          s.Error,
	}
	if s.User != nil {
		v.User = &UserView{
			ID:          s.User.ID,
			Name:        s.User.Name,
			Email:       s.User.Email,
			Role:        s.User.Role,
			Permissions: s.User.Permissions.Names(),
		}
		if !s.TokenExpiry.IsZero() {
			exp := s.TokenExpiry
			v.TokenExpiry = &exp
		}
	}
	if s.Lock.Locked && s.Lock.Until != nil {
		until := *s.Lock.Until
		v.LockedUntil = &until
	}
	return v
}

// Printer renders command results in the selected format.
type Printer struct {
	Format    OutputFormat
	NoHeaders bool
	Out       io.Writer
	// Now is used for relative times. Defaults to time.Now.
	Now func() time.Time
}

// NewPrinter creates a printer from the common flags.
func NewPrinter(flags *CommandFlags, out io.Writer) *Printer {
	return &Printer{
		Format:    OutputFormat(flags.OutputFormat),
		NoHeaders: flags.NoHeaders,
		Out:       out,
		Now:       time.Now,
	}
}

// PrintStatus renders the authentication status.
func (p *Printer) PrintStatus(s session.Snapshot) error {
	v := NewStatusView(s)
	if p.Format != OutputFormatTable {
		return p.encode(v)
	}

	t := p.newTable()
	t.AppendRow(table.Row{"State", formatState(s.State)})
	if v.User != nil {
		t.AppendRow(table.Row{"User", fmt.Sprintf("%s <%s>", v.User.Name, v.User.Email)})
		t.AppendRow(table.Row{"Role", v.User.Role})
		t.AppendRow(table.Row{"Permissions", len(v.User.Permissions)})
		if v.TokenExpiry != nil {
			t.AppendRow(table.Row{"Token expires", p.relative(*v.TokenExpiry)})
		}
	}
	if v.LockedUntil != nil {
		t.AppendRow(table.Row{"Locked until", text.FgRed.Sprint(v.LockedUntil.Local().Format(time.Kitchen))})
	} else if v.FailedAttempts > 0 {
		t.AppendRow(table.Row{"Failed attempts", v.FailedAttempts})
	}
	if v.Error != "" {
		t.AppendRow(table.Row{"Last error", text.FgYellow.Sprint(v.Error)})
	}
	t.Render()
	return nil
}

// PrintSessions renders the active session list.
func (p *Printer) PrintSessions(sessions []auth.Session) error {
	if p.Format != OutputFormatTable {
		if sessions == nil {
			sessions = []auth.Session{}
		}
		return p.encode(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(p.Out, "No active sessions")
		return nil
	}

	t := p.newTable()
	if !p.NoHeaders {
		t.AppendHeader(table.Row{"ID", "IP Address", "Client", "Last Active", ""})
	}
	for _, s := range sessions {
		marker := ""
		if s.Current {
			marker = text.FgGreen.Sprint("current")
		}
		t.AppendRow(table.Row{s.ID, s.IPAddress, dstrings.Truncate(s.UserAgent, dstrings.UserAgentMaxLen), p.relative(s.LastActive), marker})
	}
	t.Render()
	return nil
}

// PrintPermissions renders the user's capability names, one per row.
func (p *Printer) PrintPermissions(user *auth.User) error {
	var names []string
	if user != nil {
		names = user.Permissions.Names()
	}
	if names == nil {
		names = []string{}
	}
	if p.Format != OutputFormatTable {
		return p.encode(names)
	}
	t := p.newTable()
	if !p.NoHeaders {
		t.AppendHeader(table.Row{"Permission"})
	}
	for _, n := range names {
		t.AppendRow(table.Row{n})
	}
	t.Render()
	return nil
}

func (p *Printer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.Out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (p *Printer) encode(v any) error {
	switch p.Format {
	case OutputFormatJSON:
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(p.Out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return ValidateOutputFormat(string(p.Format))
	}
}

func (p *Printer) relative(ts time.Time) string {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	d := ts.Sub(now())
	switch {
	case d > 0:
		return "in " + humanDuration(d)
	case d < 0:
		return humanDuration(-d) + " ago"
	default:
		return "now"
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatState(s session.State) string {
	switch s {
	case session.StateAuthenticated:
		return text.FgGreen.Sprint("Authenticated")
	case session.StateMFAPending:
		return text.FgYellow.Sprint("Verification pending")
	case session.StateLockedOut:
		return text.FgRed.Sprint("Locked out")
	case session.StateError:
		return text.FgRed.Sprint("Error")
	case session.StateAuthenticating:
		return "Signing in"
	default:
		return text.FgYellow.Sprint("Not authenticated")
	}
}
