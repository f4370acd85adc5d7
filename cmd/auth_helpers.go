package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errNoInput is returned when a prompt reaches the end of its input.
var errNoInput = errors.New("no input provided")

// prompter reads answers from the command's input. Secrets are read
// without echo when the input is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal file descriptor, or -1 when input is not a terminal.
	fd int
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &prompter{in: bufio.NewReader(in), out: cmd.ErrOrStderr(), fd: fd}
}

// ReadLine prints label and returns the trimmed answer.
func (p *prompter) ReadLine(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadSecret prints label and reads an answer without echoing it.
func (p *prompter) ReadSecret(label string) (string, error) {
	if p.fd < 0 {
		return p.ReadLine(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(b), nil
}

// authPrint prints formatted output unless the --quiet flag is set.
// Use this for progress messages and non-essential output.
func authPrint(cmd *cobra.Command, format string, args ...interface{}) {
	if !rootFlags.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

// authPrintln prints a line unless the --quiet flag is set.
func authPrintln(cmd *cobra.Command, a ...interface{}) {
	if !rootFlags.Quiet {
		fmt.Fprintln(cmd.OutOrStdout(), a...)
	}
}
