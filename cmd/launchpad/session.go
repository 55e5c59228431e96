package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/artpar/launchpad/internal/core/domain"
	coreinventory "github.com/artpar/launchpad/internal/core/inventory"
	"github.com/artpar/launchpad/internal/shell/deploy"
	"github.com/artpar/launchpad/internal/shell/remote"
	"github.com/fatih/color"
	"golang.org/x/crypto/ssh"
)

// hostConn is an open connection to one target.
type hostConn interface {
	deploy.Remote
	Close() error
}

// Dialer opens a connection to target. Connecting is lazy: the first command dials.
type Dialer func(target domain.Target) (hostConn, error)

// DiscoverFunc lists hosts from a cloud inventory.
type DiscoverFunc func(ctx context.Context, source coreinventory.Source) ([]string, error)

var taskColor = color.New(color.Bold)

// =============================================================================
// Session
// =============================================================================

// Session is the state shared by the tasks of one invocation: the current
// settings, the resolved targets, and one connection and Runner per host.
type Session struct {
	settings domain.Settings
	source   coreinventory.Source
	discover DiscoverFunc
	dial     Dialer
	deps     deploy.Deps
	out      io.Writer
	logger   *slog.Logger

	targets  []domain.Target
	resolved bool
	conns    map[string]hostConn
	runners  map[string]*deploy.Runner
	local    *deploy.Runner
}

// NewSession creates a Session. Hosts are resolved when the first per-host task runs.
func NewSession(settings domain.Settings, source coreinventory.Source, discover DiscoverFunc, dial Dialer, deps deploy.Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	return &Session{
		settings: settings,
		source:   source,
		discover: discover,
		dial:     dial,
		deps:     deps,
		out:      deps.Out,
		logger:   deps.Logger.With("component", "session"),
		conns:    make(map[string]hostConn),
		runners:  make(map[string]*deploy.Runner),
	}
}

// Settings returns the current settings.
func (s *Session) Settings() domain.Settings {
	return s.settings
}

// SetDestination switches where lifecycle tasks run for the rest of the invocation.
// Runners are rebuilt with the new settings; open connections are kept.
func (s *Session) SetDestination(d domain.Destination) {
	s.settings = s.settings.WithDestination(d)
	s.runners = make(map[string]*deploy.Runner)
	s.local = nil
	s.logger.Info("destination switched", "destination", d)
}

// Local returns the Runner for tasks that only touch this machine.
func (s *Session) Local() *deploy.Runner {
	if s.local == nil {
		s.local = deploy.NewRunner(s.settings, nil, s.deps)
	}
	return s.local
}

// Targets resolves the static hosts plus any discovered from the inventory.
func (s *Session) Targets(ctx context.Context) ([]domain.Target, error) {
	if s.resolved {
		return s.targets, nil
	}

	var discovered []string
	if s.discover != nil && s.source.Enabled() {
		hosts, err := s.discover(ctx, s.source)
		if err != nil {
			return nil, domain.Abort("Could not discover hosts", err)
		}
		discovered = hosts
	}

	settings := s.settings
	settings.Hosts = domain.MergeHosts(settings.Hosts, discovered)
	targets, err := settings.Targets()
	switch {
	case errors.Is(err, domain.ErrNoHosts):
		return nil, domain.Abort("No hosts to run on. Set hosts or inventory in the configuration", err)
	case err != nil:
		return nil, domain.Abort("Invalid host in the configuration", err)
	}

	s.targets = targets
	s.resolved = true
	return targets, nil
}

// EachHost runs fn for every target in order. The first error stops the run.
func (s *Session) EachHost(ctx context.Context, task string, fn func(ctx context.Context, r *deploy.Runner) error) error {
	targets, err := s.Targets(ctx)
	if err != nil {
		return err
	}
	for _, t := range targets {
		taskColor.Fprintf(s.out, "[%s] Executing task '%s'\n", t.Host, task)

		r, err := s.runner(t)
		if err != nil {
			return err
		}
		if err := fn(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// runner returns the cached Runner for t, dialing on first use.
func (s *Session) runner(t domain.Target) (*deploy.Runner, error) {
	key := t.String()
	if r, ok := s.runners[key]; ok {
		return r, nil
	}

	conn, ok := s.conns[key]
	if !ok {
		var err error
		conn, err = s.dial(t)
		if err != nil {
			return nil, domain.Abort(fmt.Sprintf("Could not connect to %s", t), err)
		}
		s.conns[key] = conn
	}

	r := deploy.NewRunner(s.settings, conn, s.deps)
	s.runners[key] = r
	return r, nil
}

// Close disconnects from every host.
func (s *Session) Close() {
	for key, conn := range s.conns {
		if err := conn.Close(); err != nil {
			s.logger.Warn("failed to close connection", "host", key, "error", err)
		}
		delete(s.conns, key)
	}
}

// =============================================================================
// SSH Dialer
// =============================================================================

// SSHDialer returns a Dialer that authenticates every host with the same
// key material and host key policy. Output of remote commands goes to stdout and stderr.
func SSHDialer(cfg *Config, stdout, stderr io.Writer, logger *slog.Logger) Dialer {
	var (
		auth    []ssh.AuthMethod
		hostKey ssh.HostKeyCallback
		prepErr error
		ready   bool
	)

	return func(target domain.Target) (hostConn, error) {
		if !ready {
			ready = true
			auth, prepErr = remote.AuthMethods(cfg.SSH.KeyFile, cfg.SSH.Passphrase, cfg.SSH.UseAgent, logger)
			if prepErr == nil {
				hostKey, prepErr = remote.HostKeyCallback(cfg.SSH.KnownHosts, logger)
			}
		}
		if prepErr != nil {
			return nil, prepErr
		}

		return remote.NewClient(target, auth, hostKey, remote.ClientConfig{
			ConnectTimeout: cfg.SSH.ConnectTimeout,
			CommandTimeout: cfg.SSH.CommandTimeout,
			Stdout:         stdout,
			Stderr:         stderr,
		}, logger), nil
	}
}
