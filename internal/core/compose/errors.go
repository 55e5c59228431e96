// Package compose inspects Docker Compose files before a stack is brought up.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
)

// =============================================================================
// Inspection Errors
// =============================================================================

var (
	ErrEmptyInput         = errors.New("compose file is empty")
	ErrInvalidYAML        = errors.New("invalid YAML syntax")
	ErrNoServices         = errors.New("compose file must define at least one service")
	ErrServiceNoImage     = errors.New("service must have image or build")
	ErrServiceInvalidPort = errors.New("invalid port configuration")
	ErrCircularDependency = errors.New("circular dependency detected")
)

// FieldError locates an inspection failure in the compose file.
// Detail, when set, replaces the sentinel's text in the message.
type FieldError struct {
	Field  string // e.g. "services.web.ports[0]"
	Detail string
	Err    error
}

func (e *FieldError) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field == "" {
		return msg
	}
	return e.Field + ": " + msg
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(field, detail string, err error) *FieldError {
	return &FieldError{Field: field, Detail: detail, Err: err}
}
