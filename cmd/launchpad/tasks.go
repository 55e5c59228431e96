package main

import (
	"context"

	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/deploy"
)

// =============================================================================
// Task Table
// =============================================================================

// DefaultRegistry returns the registry with every launchpad task.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Task{
		Name:    "dev",
		Help:    "Run start, stop and status on this machine",
		Handler: destinationTask(domain.DestinationLocal),
	})
	r.Register(Task{
		Name:    "remote",
		Help:    "Run start, stop and status on the configured hosts (default)",
		Handler: destinationTask(domain.DestinationRemote),
	})
	r.Register(Task{
		Name: "test_connection",
		Help: "Check that every host is reachable",
		Handler: perHost("test_connection", func(ctx context.Context, r *deploy.Runner) error {
			return r.TestConnection(ctx)
		}),
	})
	r.Register(Task{
		Name: "prepare_server",
		Help: "Install git, and docker with compose when docker deploys are on",
		Handler: perHost("prepare_server", func(ctx context.Context, r *deploy.Runner) error {
			return r.PrepareServer(ctx)
		}),
	})
	r.Register(Task{
		Name: "deploy",
		Help: "Deploy the application with docker, git or a file upload",
		Handler: perHost("deploy", func(ctx context.Context, r *deploy.Runner) error {
			_, err := r.Deploy(ctx)
			return err
		}),
	})
	r.Register(Task{
		Name: "commit",
		Help: "Commit local changes, creating the repository if needed",
		Handler: func(ctx context.Context, s *Session, _ string) error {
			return s.Local().Commit(ctx)
		},
	})
	r.Register(Task{
		Name: "start",
		Help: "Start the containers",
		Handler: atDestination("start", func(ctx context.Context, r *deploy.Runner) error {
			return r.Start(ctx)
		}),
	})
	r.Register(Task{
		Name: "stop",
		Help: "Stop the containers",
		Handler: atDestination("stop", func(ctx context.Context, r *deploy.Runner) error {
			return r.Stop(ctx)
		}),
	})
	r.Register(Task{
		Name: "status",
		Help: "List the containers",
		Handler: atDestination("status", func(ctx context.Context, r *deploy.Runner) error {
			return r.Status(ctx)
		}),
	})
	r.Register(Task{
		Name:     "is_available",
		Help:     "Check whether a command succeeds on every host, e.g. is_available:git",
		NeedsArg: true,
		Handler: func(ctx context.Context, s *Session, arg string) error {
			return s.EachHost(ctx, "is_available", func(ctx context.Context, r *deploy.Runner) error {
				_, err := r.IsAvailable(ctx, arg)
				return err
			})
		},
	})

	return r
}

func destinationTask(d domain.Destination) Handler {
	return func(_ context.Context, s *Session, _ string) error {
		s.SetDestination(d)
		return nil
	}
}

func perHost(name string, fn func(ctx context.Context, r *deploy.Runner) error) Handler {
	return func(ctx context.Context, s *Session, _ string) error {
		return s.EachHost(ctx, name, fn)
	}
}

// atDestination runs fn once on this machine after dev, or on every host otherwise.
func atDestination(name string, fn func(ctx context.Context, r *deploy.Runner) error) Handler {
	return func(ctx context.Context, s *Session, _ string) error {
		if s.Settings().Destination == domain.DestinationLocal {
			return fn(ctx, s.Local())
		}
		return s.EachHost(ctx, name, fn)
	}
}
