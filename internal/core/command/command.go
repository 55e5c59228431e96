// Package command composes the shell command lines sent to local and remote shells.
// This is part of the Functional Core - all functions are pure with no I/O.
package command

import (
	"strings"

	"github.com/alessio/shellescape"
)

// =============================================================================
// Options and Results
// =============================================================================

// Options controls how a command line is run.
type Options struct {
	Dir         string // Change into Dir before running
	Sudo        bool   // Run with elevated privileges
	Quiet       bool   // Capture output without echoing it
	Interactive bool   // Attach the operator's terminal (local commands only)
}

// Result is the outcome of a command that ran to completion.
// A non-zero ExitCode is a result, not an error; errors are reserved for
// failures to run the command at all.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded returns true if the command exited 0.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Failed returns true if the command exited non-zero.
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// =============================================================================
// Builders
// =============================================================================

// Quote quotes a single shell word.
func Quote(s string) string {
	return shellescape.Quote(s)
}

// Join quotes each word and joins them with spaces.
func Join(words ...string) string {
	return shellescape.QuoteCommand(words)
}

// Path quotes a path while leaving a leading ~ for the shell to expand.
func Path(p string) string {
	switch {
	case p == "~":
		return "~"
	case strings.HasPrefix(p, "~/"):
		rest := strings.TrimPrefix(p, "~/")
		if rest == "" {
			return "~/"
		}
		return "~/" + Quote(rest)
	default:
		return Quote(p)
	}
}

// Build wraps cmd according to opts. privileged reports whether the shell
// already runs as root, in which case sudo is skipped. The directory change
// happens outside sudo so ~ expands for the login user.
func Build(cmd string, opts Options, privileged bool) string {
	line := cmd
	if opts.Sudo && !privileged {
		if opts.Interactive {
			line = "sudo sh -c " + Quote(line)
		} else {
			line = "sudo -n sh -c " + Quote(line)
		}
	}
	if opts.Dir != "" {
		line = "cd " + Path(opts.Dir) + " && " + line
	}
	return line
}
