package remote

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrConnectionFailed = errors.New("ssh connection failed")
	ErrSessionFailed    = errors.New("ssh session failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrNoExitStatus     = errors.New("command exited without a status")
	ErrUploadFailed     = errors.New("upload failed")
)

// RemoteError wraps errors with the host and operation that failed.
type RemoteError struct {
	Op      string // Operation that failed
	Host    string // user@host:port
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Host, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(op, host, message string, err error) *RemoteError {
	return &RemoteError{
		Op:      op,
		Host:    host,
		Message: message,
		Err:     err,
	}
}
