package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Daemon Errors
// =============================================================================

var (
	ErrConnectionFailed = errors.New("docker connection failed")
	ErrProjectRequired  = errors.New("compose project name is required")
)

// DaemonError records which daemon call failed and for which compose project.
type DaemonError struct {
	Call    string
	Project string
	Err     error
}

func (e *DaemonError) Error() string {
	if e.Project != "" {
		return fmt.Sprintf("docker %s (project %s): %v", e.Call, e.Project, e.Err)
	}
	return fmt.Sprintf("docker %s: %v", e.Call, e.Err)
}

func (e *DaemonError) Unwrap() error {
	return e.Err
}

func daemonError(call, project string, err error) *DaemonError {
	return &DaemonError{Call: call, Project: project, Err: err}
}
