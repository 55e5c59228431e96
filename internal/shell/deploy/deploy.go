package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/artpar/launchpad/internal/core/command"
	"github.com/artpar/launchpad/internal/core/compose"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/archive"
)

// =============================================================================
// Strategy Selection
// =============================================================================

// Deploy probes git then docker on the target and delivers the application
// with the strategy SelectStrategy picks for them. Docker is only probed when
// git is available.
func (r *Runner) Deploy(ctx context.Context) (domain.Strategy, error) {
	git, err := r.Probe(ctx, domain.ProbeGit)
	if err != nil {
		return "", err
	}
	docker := domain.CapabilityUnknown
	if git.Available() {
		docker, err = r.Probe(ctx, domain.ProbeDocker)
		if err != nil {
			return "", err
		}
	}

	strategy := domain.SelectStrategy(git, docker)
	r.logger.Info("deploying", "strategy", strategy, "git", git, "docker", docker)

	switch strategy {
	case domain.StrategyDocker:
		return strategy, r.deployWithDocker(ctx)
	case domain.StrategyGit:
		return strategy, r.deployWithGit(ctx)
	default:
		return strategy, r.deployWithArchive(ctx)
	}
}

// =============================================================================
// Strategies
// =============================================================================

// deployWithDocker pulls the code with git, checks the compose file and
// brings the stack up inside the application directory.
func (r *Runner) deployWithDocker(ctx context.Context) error {
	if err := r.deployWithGit(ctx); err != nil {
		return err
	}
	if err := r.inspectComposeFile(); err != nil {
		return err
	}

	dir, err := r.resolveAppDir(ctx)
	if err != nil {
		return err
	}
	res, err := r.remoteRun(ctx, r.composeLine("up", "-d"), command.Options{Dir: dir, Sudo: true})
	if err != nil {
		return err
	}
	return mustSucceed(res, "Could not start the containers")
}

// deployWithGit pushes local commits, then clones or pulls on the target.
func (r *Runner) deployWithGit(ctx context.Context) error {
	if r.settings.GitPullURL == "" {
		return domain.Abort("No repository to pull from", domain.ErrPullURLRequired)
	}

	res, err := r.localRun(ctx, command.Join("git", "push", r.settings.GitRemote, r.settings.GitBranch), command.Options{})
	if err != nil {
		return err
	}
	if err := mustSucceed(res, "Could not push local commits"); err != nil {
		return err
	}

	dir, err := r.ensureAppDir(ctx)
	if err != nil {
		return err
	}

	res, err = r.remoteRun(ctx, "test -d .git", command.Options{Dir: dir, Quiet: true})
	if err != nil {
		return err
	}

	if res.Failed() {
		clone := command.Join("git", "clone", "--branch", r.settings.GitBranch, r.settings.GitPullURL, ".")
		res, err = r.remoteRun(ctx, clone, command.Options{Dir: dir})
		if err != nil {
			return err
		}
		if res.Failed() {
			r.warn("git clone failed", "dir", dir, "exit_code", res.ExitCode)
		}
		return nil
	}

	res, err = r.remoteRun(ctx, "git pull", command.Options{Dir: dir})
	if err != nil {
		return err
	}
	if res.Failed() {
		r.warn("git pull failed", "dir", dir, "exit_code", res.ExitCode)
	}
	return nil
}

// deployWithArchive packs the local tree, uploads it to the staging directory
// and unpacks it into the application directory.
func (r *Runner) deployWithArchive(ctx context.Context) error {
	if r.remote == nil {
		return ErrNoRemote
	}

	dir, err := r.ensureAppDir(ctx)
	if err != nil {
		return err
	}

	root := r.settings.Archive.Root
	if root == "" {
		root = "."
	}
	name := fmt.Sprintf("%s-%s.tar.gz", r.settings.AppName(), r.deps.RunID)
	staged := path.Join(r.settings.Archive.StagingDir, name)

	pr, pw := io.Pipe()
	packed := make(chan archive.Stats, 1)
	go func() {
		stats, err := r.deps.Pack(pw, root, r.settings.Archive.Exclude)
		packed <- stats
		pw.CloseWithError(err)
	}()

	err = r.remote.Upload(ctx, pr, staged, 0o600)
	pr.CloseWithError(err)
	stats := <-packed
	if err != nil {
		return domain.Abort("Could not upload the application archive", err)
	}
	r.say("Uploaded %d files (%d bytes) to %s", stats.Files, stats.Bytes, staged)

	res, err := r.remoteRun(ctx, command.Join("tar", "-xzf", staged, "-C", dir), command.Options{})
	if err != nil {
		return err
	}
	if err := mustSucceed(res, "Could not unpack the application archive"); err != nil {
		return err
	}

	res, err = r.remoteRun(ctx, command.Join("rm", "-f", staged), command.Options{Quiet: true})
	if err != nil {
		return err
	}
	if res.Failed() {
		r.warn("could not remove the staged archive", "path", staged)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// ensureAppDir creates the application directory when it is absent and hands
// it to the login user.
func (r *Runner) ensureAppDir(ctx context.Context) (string, error) {
	dir, err := r.resolveAppDir(ctx)
	if err != nil {
		return "", err
	}

	res, err := r.remoteRun(ctx, command.Join("test", "-d", dir), command.Options{Quiet: true})
	if err != nil {
		return "", err
	}
	if res.Succeeded() {
		return dir, nil
	}

	res, err = r.remoteRun(ctx, command.Join("mkdir", "-p", dir), command.Options{Sudo: true})
	if err != nil {
		return "", err
	}
	if res.Failed() {
		r.warn("could not create the application directory", "dir", dir)
		return dir, nil
	}

	user := r.remote.Target().User
	if user != "root" {
		res, err = r.remoteRun(ctx, command.Join("chown", user+":", dir), command.Options{Sudo: true})
		if err != nil {
			return "", err
		}
		if res.Failed() {
			r.warn("could not change owner of the application directory", "dir", dir, "user", user)
		}
	}
	return dir, nil
}

// inspectComposeFile validates the local compose file and prints its services.
// A missing file is only a warning; the copy on the target is authoritative.
func (r *Runner) inspectComposeFile() error {
	file := r.settings.ComposeFile
	if file == "" {
		return nil
	}
	if !filepath.IsAbs(file) && r.settings.Archive.Root != "" {
		file = filepath.Join(r.settings.Archive.Root, file)
	}

	data, err := r.deps.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		r.warn("compose file not found locally; skipping validation", "file", file)
		return nil
	}
	if err != nil {
		return domain.Abort(fmt.Sprintf("Could not read %s", file), err)
	}

	stack, err := compose.Parse(string(data), r.settings.AppName())
	if err != nil {
		return domain.Abort(fmt.Sprintf("Invalid compose file %s", file), err)
	}
	for _, line := range compose.Summary(stack) {
		r.say("  %s", line)
	}
	return nil
}
