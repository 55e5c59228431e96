package deploy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/artpar/launchpad/internal/core/command"
	"github.com/artpar/launchpad/internal/core/compose"
	"github.com/artpar/launchpad/internal/core/domain"
)

// ErrStatusUnavailable is returned by a local status without a Docker client.
var ErrStatusUnavailable = errors.New("docker status is not available")

// Start brings the compose stack up at the current destination.
func (r *Runner) Start(ctx context.Context) error {
	return r.lifecycle(ctx, "Could not start the containers", "up", "-d")
}

// Stop stops the compose stack at the current destination.
func (r *Runner) Stop(ctx context.Context) error {
	return r.lifecycle(ctx, "Could not stop the containers", "stop")
}

// lifecycle runs a compose subcommand locally with sudo, or on the target
// inside the application directory with elevated privileges.
func (r *Runner) lifecycle(ctx context.Context, failure string, args ...string) error {
	line := r.composeLine(args...)

	if r.settings.Destination == domain.DestinationLocal {
		res, err := r.localRun(ctx, line, command.Options{Sudo: true, Interactive: true})
		if err != nil {
			return err
		}
		return mustSucceed(res, failure)
	}

	dir, err := r.resolveAppDir(ctx)
	if err != nil {
		return err
	}
	res, err := r.remoteRun(ctx, line, command.Options{Dir: dir, Sudo: true})
	if err != nil {
		return err
	}
	return mustSucceed(res, failure)
}

// Status lists the stack's containers. Locally this asks the Docker daemon;
// on a target it runs compose ps in the application directory.
func (r *Runner) Status(ctx context.Context) error {
	if r.settings.Destination != domain.DestinationLocal {
		dir, err := r.resolveAppDir(ctx)
		if err != nil {
			return err
		}
		res, err := r.remoteRun(ctx, r.composeLine("ps"), command.Options{Dir: dir, Sudo: true})
		if err != nil {
			return err
		}
		return mustSucceed(res, "Could not list the containers")
	}

	if r.deps.Docker == nil {
		return ErrStatusUnavailable
	}
	cli, err := r.deps.Docker(ctx)
	if err != nil {
		return domain.Abort("Could not connect to the Docker daemon", err)
	}
	defer cli.Close()

	project, err := r.localProject()
	if err != nil {
		return err
	}
	containers, err := cli.ProjectContainers(ctx, project)
	if err != nil {
		return domain.Abort(fmt.Sprintf("Could not list containers of %s", project), err)
	}

	if len(containers) == 0 {
		r.say("No containers for project %s", project)
		return nil
	}
	for _, c := range containers {
		r.say("%s", c.Line())
	}
	return nil
}

// localProject derives the compose project name of the local stack from the
// directory holding the compose file.
func (r *Runner) localProject() (string, error) {
	file := r.settings.ComposeFile
	if file == "" {
		file = "."
	}
	if !filepath.IsAbs(file) && r.settings.Archive.Root != "" {
		file = filepath.Join(r.settings.Archive.Root, file)
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	return compose.ProjectName(filepath.Dir(abs)), nil
}
