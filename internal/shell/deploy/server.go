package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/launchpad/internal/core/command"
	"github.com/artpar/launchpad/internal/core/domain"
)

// =============================================================================
// Connection
// =============================================================================

// TestConnection prints the target's uname and aborts when it cannot run.
func (r *Runner) TestConnection(ctx context.Context) error {
	if r.remote == nil {
		return ErrNoRemote
	}

	res, err := r.remote.Run(ctx, "uname -a", command.Options{})
	if err == nil && res.Succeeded() {
		return nil
	}

	cause := err
	if cause == nil {
		cause = fmt.Errorf("uname -a exited %d", res.ExitCode)
	}
	r.banner("Could not connect to remote server. Please check your configuration")
	return domain.Abort("Cannot continue. Aborting...", fmt.Errorf("%w: %w", domain.ErrUnreachable, cause))
}

// =============================================================================
// Capability Probe
// =============================================================================

// Probe runs cmd quietly on the target. A non-zero exit prints exactly one
// banner and yields CapabilityMissing; transport failures are returned.
func (r *Runner) Probe(ctx context.Context, cmd string) (domain.Capability, error) {
	res, err := r.remoteRun(ctx, cmd, command.Options{Quiet: true})
	if err != nil {
		return domain.CapabilityUnknown, err
	}

	capability := domain.CapabilityFromExit(res.ExitCode)
	r.logger.Debug("probe", "command", cmd, "capability", capability, "exit_code", res.ExitCode)
	if !capability.Available() {
		r.banner(fmt.Sprintf("%s was not found in the server", cmd))
	}
	return capability, nil
}

// IsAvailable probes cmd and reports the answer to the operator.
func (r *Runner) IsAvailable(ctx context.Context, cmd string) (domain.Capability, error) {
	capability, err := r.Probe(ctx, cmd)
	if err != nil {
		return capability, err
	}
	if capability.Available() {
		r.say("%s is available on %s", cmd, r.remote.Target())
	}
	return capability, nil
}

// =============================================================================
// Installer
// =============================================================================

// EnsureSupportedOS aborts unless the target has apt-get. The answer is cached.
func (r *Runner) EnsureSupportedOS(ctx context.Context) error {
	if r.osChecked {
		return nil
	}

	res, err := r.remoteRun(ctx, "command -v apt-get", command.Options{Quiet: true})
	if err != nil {
		return err
	}
	if res.Failed() {
		r.banner("Only debian based distros are supported at the moment")
		return domain.Abort("This OS doesn't have apt-get. Exiting", domain.ErrUnsupportedOS)
	}

	r.osChecked = true
	return nil
}

// Install installs packages with apt-get. The OS is checked before any install
// command runs. On failure the operator decides whether the run continues.
func (r *Runner) Install(ctx context.Context, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	if err := r.EnsureSupportedOS(ctx); err != nil {
		return err
	}

	if !r.aptUpdated {
		res, err := r.remoteRun(ctx, "apt-get update", command.Options{Sudo: true, Quiet: true})
		if err != nil {
			return err
		}
		if res.Failed() {
			r.warn("apt-get update failed; installing from the current package index", "exit_code", res.ExitCode)
		}
		r.aptUpdated = true
	}

	install := "DEBIAN_FRONTEND=noninteractive " + command.Join(append([]string{"apt-get", "install", "-y"}, packages...)...)
	res, err := r.remoteRun(ctx, install, command.Options{Sudo: true})
	if err != nil {
		return err
	}
	if res.Succeeded() {
		r.logger.Info("installed packages", "packages", packages)
		return nil
	}

	r.banner("Something went wrong, do you want to continue?")
	ok, err := r.deps.Confirm.Confirm(ctx, "Continue?", false)
	if err != nil {
		return domain.Abort("Could not read the answer", err)
	}
	if !ok {
		return domain.Abort(fmt.Sprintf("Installing %s failed", strings.Join(packages, " ")), domain.ErrAborted)
	}
	r.warn(fmt.Sprintf("continuing without %s", strings.Join(packages, " ")))
	return nil
}

// PrepareServer checks the connection, then installs every missing requirement.
func (r *Runner) PrepareServer(ctx context.Context) error {
	if err := r.TestConnection(ctx); err != nil {
		return err
	}

	if r.settings.DockerDeploy {
		r.banner("Preparing Server with Docker")
	} else {
		r.banner("Preparing Server without Docker")
	}

	for _, req := range r.settings.Requirements() {
		capability, err := r.Probe(ctx, req.Probe)
		if err != nil {
			return err
		}
		if capability.Available() {
			continue
		}
		if err := r.Install(ctx, strings.Fields(r.settings.Package(req.Name))...); err != nil {
			return err
		}
	}
	return nil
}
