// Package prompt asks the operator yes/no questions.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirmer decides whether a run continues after a recoverable failure.
type Confirmer interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, question string, defaultYes bool) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	return f(ctx, question, defaultYes)
}

// Fixed always answers the same way without asking.
type Fixed bool

// Confirm returns the fixed answer.
func (f Fixed) Confirm(context.Context, string, bool) (bool, error) {
	return bool(f), nil
}

// =============================================================================
// Terminal
// =============================================================================

// Terminal reads answers from the operator's terminal. When input is not a
// terminal the default answer is used without reading.
type Terminal struct {
	in    io.Reader
	out   io.Writer
	isTTY func() bool
}

// NewTerminal creates a Terminal on stdin and stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		in:    os.Stdin,
		out:   os.Stdout,
		isTTY: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// Confirm asks question and reads y/n. An empty answer takes the default.
// Unrecognised answers are asked again.
func (t *Terminal) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	if !t.isTTY() {
		fmt.Fprintf(t.out, "%s %s (non-interactive, answering %s)\n", question, suffix, answerWord(defaultYes))
		return defaultYes, nil
	}

	reader := bufio.NewReader(t.in)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "%s %s ", question, suffix)

		line, err := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "":
			if err != nil && err != io.EOF {
				return false, err
			}
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			return defaultYes, nil
		}
		fmt.Fprintln(t.out, "I didn't understand you. Please specify '(y)es' or '(n)o'.")
	}
}

func answerWord(yes bool) string {
	if yes {
		return "yes"
	}
	return "no"
}
