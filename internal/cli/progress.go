package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WithSpinner runs fn while a spinner with msg is shown on w. The spinner is
// skipped in quiet mode.
func WithSpinner(w io.Writer, quiet bool, msg string, fn func() error) error {
	if quiet {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + msg
	s.Start()
	defer s.Stop()

	err := fn()
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint(msg+" failed") + "\n"
	}
	return err
}
