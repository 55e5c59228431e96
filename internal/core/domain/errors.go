// Package domain contains the core deployment types and the pure decision logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	// ErrUnsupportedOS is returned when the target has no Debian-family package manager.
	ErrUnsupportedOS = errors.New("unsupported operating system")

	// ErrAborted is returned when the operator declines to continue.
	ErrAborted = errors.New("aborted by operator")

	// ErrUnreachable is returned when the target host cannot be reached.
	ErrUnreachable = errors.New("host unreachable")

	// ErrCommandFailed is returned when a command that must succeed exits non-zero.
	ErrCommandFailed = errors.New("command failed")

	// ErrNoHosts is returned when a per-host task runs without any configured host.
	ErrNoHosts = errors.New("no hosts configured")
)

// AbortError is a fatal, non-recoverable failure that stops the whole run.
// Message is what the operator sees after "Fatal error:".
type AbortError struct {
	Message string
	Err     error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Abort creates a new AbortError.
func Abort(message string, err error) *AbortError {
	return &AbortError{Message: message, Err: err}
}
