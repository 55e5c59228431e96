// Package local runs commands on the operator's machine through sh -c.
// This is part of the Imperative Shell - handles local process I/O.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/artpar/launchpad/internal/core/command"
)

// ErrStartFailed is returned when the shell process cannot be started.
var ErrStartFailed = errors.New("local command could not be started")

// Shell executes command lines locally.
type Shell struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	timeout    time.Duration
	privileged bool
	logger     *slog.Logger
}

// Config configures a Shell. Nil streams default to the process streams.
type Config struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration // 0 disables the per-command timeout
}

// NewShell creates a Shell. sudo is skipped when the process already runs as root.
func NewShell(config Config, logger *slog.Logger) *Shell {
	if config.Stdin == nil {
		config.Stdin = os.Stdin
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		stdin:      config.Stdin,
		stdout:     config.Stdout,
		stderr:     config.Stderr,
		timeout:    config.Timeout,
		privileged: os.Geteuid() == 0,
		logger:     logger.With("component", "local"),
	}
}

// Run executes cmd through sh -c. A non-zero exit is reported in the Result.
// Interactive commands get the operator's terminal and their output is not captured.
func (s *Shell) Run(ctx context.Context, cmd string, opts command.Options) (command.Result, error) {
	line := command.Build(cmd, opts, s.privileged)
	result := command.Result{Command: line}

	if s.timeout > 0 && !opts.Interactive {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if !opts.Quiet {
		fmt.Fprintf(s.stdout, "[localhost] local: %s\n", line)
	}
	s.logger.Debug("run", "command", line, "interactive", opts.Interactive)

	proc := exec.CommandContext(ctx, "sh", "-c", line)
	var stdout, stderr bytes.Buffer
	switch {
	case opts.Interactive:
		proc.Stdin = s.stdin
		proc.Stdout = s.stdout
		proc.Stderr = s.stderr
	case opts.Quiet:
		proc.Stdout = &stdout
		proc.Stderr = &stderr
	default:
		proc.Stdout = io.MultiWriter(&stdout, s.stdout)
		proc.Stderr = io.MultiWriter(&stderr, s.stderr)
	}

	err := proc.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return result, fmt.Errorf("run %q: %w", line, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, fmt.Errorf("%w: %v", ErrStartFailed, err)
}
