package domain

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// =============================================================================
// Target Errors
// =============================================================================

var (
	ErrHostRequired = errors.New("host is required")
	ErrHostInvalid  = errors.New("host must be a valid hostname or IP address")
	ErrPortInvalid  = errors.New("SSH port must be between 1 and 65535")
	ErrUserRequired = errors.New("SSH user is required")
)

// =============================================================================
// Target
// =============================================================================

// Target is one remote host the tasks run against.
type Target struct {
	User string
	Host string
	Port int
}

// ParseTarget parses a host string of the form [user@]host[:port].
// IPv6 addresses with a port must be bracketed: [::1]:2222.
func ParseTarget(s, defaultUser string, defaultPort int) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, ErrHostRequired
	}

	t := Target{User: defaultUser, Port: defaultPort}

	if i := strings.LastIndex(s, "@"); i >= 0 {
		t.User = s[:i]
		s = s[i+1:]
	}

	switch {
	case strings.HasPrefix(s, "["):
		if strings.HasSuffix(s, "]") {
			t.Host = strings.Trim(s, "[]")
			break
		}
		host, port, err := net.SplitHostPort(s)
		if err != nil {
			return Target{}, ErrHostInvalid
		}
		t.Host = host
		if err := t.setPort(port); err != nil {
			return Target{}, err
		}
	case strings.Count(s, ":") == 1:
		host, port, err := net.SplitHostPort(s)
		if err != nil {
			return Target{}, ErrHostInvalid
		}
		t.Host = host
		if err := t.setPort(port); err != nil {
			return Target{}, err
		}
	default:
		t.Host = s
	}

	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

func (t *Target) setPort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return ErrPortInvalid
	}
	t.Port = p
	return nil
}

// Validate checks the target's fields.
func (t Target) Validate() error {
	if t.Host == "" {
		return ErrHostRequired
	}
	if strings.ContainsAny(t.Host, " \t/@") {
		return ErrHostInvalid
	}
	if t.Port < 1 || t.Port > 65535 {
		return ErrPortInvalid
	}
	if t.User == "" {
		return ErrUserRequired
	}
	return nil
}

// Address returns host:port suitable for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns the canonical user@host:port form.
func (t Target) String() string {
	return t.User + "@" + t.Address()
}
