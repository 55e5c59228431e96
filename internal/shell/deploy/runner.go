// Package deploy runs the provisioning and deployment tasks against one host.
// This is part of the Imperative Shell - it sequences commands on the local
// machine and the target, branching on their exit status.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/artpar/launchpad/internal/core/banner"
	"github.com/artpar/launchpad/internal/core/command"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/archive"
	"github.com/artpar/launchpad/internal/shell/docker"
	"github.com/artpar/launchpad/internal/shell/prompt"
	"github.com/fatih/color"
)

// ErrNoRemote is returned when a host task runs on a Runner without a target.
var ErrNoRemote = errors.New("task needs a remote host")

// =============================================================================
// Executors
// =============================================================================

// Executor runs a command line. A non-zero exit is a Result, not an error.
type Executor interface {
	Run(ctx context.Context, cmd string, opts command.Options) (command.Result, error)
}

// Remote is an Executor bound to one target that can also receive files.
type Remote interface {
	Executor
	Upload(ctx context.Context, r io.Reader, remotePath string, mode os.FileMode) error
	Home(ctx context.Context) (string, error)
	Target() domain.Target
}

// PackFunc writes a gzip-compressed tar of root to w.
type PackFunc func(w io.Writer, root string, exclude []string) (archive.Stats, error)

// DockerFunc opens a client to the local Docker daemon.
type DockerFunc func(ctx context.Context) (docker.Client, error)

// Deps are the collaborators shared by every Runner of a run.
type Deps struct {
	Local   Executor
	Confirm prompt.Confirmer
	Out     io.Writer // Operator output; nil means stdout
	Logger  *slog.Logger
	RunID   string

	Pack     PackFunc   // nil means archive.Write
	Docker   DockerFunc // nil disables the local status task
	ReadFile func(name string) ([]byte, error)
}

// =============================================================================
// Runner
// =============================================================================

// Runner executes tasks for one host. Host facts learned during the run
// (OS check, apt index refresh, resolved app directory) are cached on it.
type Runner struct {
	settings domain.Settings
	remote   Remote
	deps     Deps
	logger   *slog.Logger

	osChecked  bool
	aptUpdated bool
	appDir     string
}

// NewRunner creates a Runner. remote may be nil for tasks that only run locally.
func NewRunner(settings domain.Settings, remote Remote, deps Deps) *Runner {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Confirm == nil {
		deps.Confirm = prompt.Fixed(false)
	}
	if deps.Pack == nil {
		deps.Pack = archive.Write
	}
	if deps.ReadFile == nil {
		deps.ReadFile = os.ReadFile
	}

	logger := deps.Logger.With("component", "deploy")
	if remote != nil {
		logger = logger.With("host", remote.Target().String())
	}

	return &Runner{
		settings: settings,
		remote:   remote,
		deps:     deps,
		logger:   logger,
	}
}

// Settings returns the settings the runner was built with.
func (r *Runner) Settings() domain.Settings {
	return r.settings
}

// =============================================================================
// Output
// =============================================================================

var (
	bannerColor  = color.New(color.FgCyan, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgGreen)
)

// banner prints message framed in '#'.
func (r *Runner) banner(message string) {
	bannerColor.Fprint(r.deps.Out, banner.Format(message))
}

// say prints an informational line.
func (r *Runner) say(format string, args ...any) {
	infoColor.Fprintf(r.deps.Out, format+"\n", args...)
}

// warn reports a failed step that does not stop the run.
func (r *Runner) warn(message string, attrs ...any) {
	warningColor.Fprintf(r.deps.Out, "Warning: %s\n", message)
	r.logger.Warn(message, attrs...)
}

// =============================================================================
// Command helpers
// =============================================================================

// remoteRun runs cmd on the target. Transport failures abort the run.
func (r *Runner) remoteRun(ctx context.Context, cmd string, opts command.Options) (command.Result, error) {
	if r.remote == nil {
		return command.Result{}, ErrNoRemote
	}
	res, err := r.remote.Run(ctx, cmd, opts)
	if err != nil {
		return res, domain.Abort(
			fmt.Sprintf("Could not reach %s", r.remote.Target()),
			fmt.Errorf("%w: %w", domain.ErrUnreachable, err),
		)
	}
	return res, nil
}

// localRun runs cmd on this machine. Failure to start the shell aborts the run.
func (r *Runner) localRun(ctx context.Context, cmd string, opts command.Options) (command.Result, error) {
	res, err := r.deps.Local.Run(ctx, cmd, opts)
	if err != nil {
		return res, domain.Abort(fmt.Sprintf("local command %q failed to run", cmd), err)
	}
	return res, nil
}

// mustSucceed converts a non-zero exit into an abort with message.
func mustSucceed(res command.Result, message string) error {
	if res.Failed() {
		return domain.Abort(message, fmt.Errorf("%w: %s exited %d", domain.ErrCommandFailed, res.Command, res.ExitCode))
	}
	return nil
}

// composeLine builds "<compose> [-f file] <args>".
func (r *Runner) composeLine(args ...string) string {
	line := strings.TrimSpace(r.settings.ComposeCommand)
	if r.settings.ComposeFile != "" {
		line += " -f " + command.Quote(r.settings.ComposeFile)
	}
	return line + " " + command.Join(args...)
}

// resolveAppDir returns the remote application directory with ~ expanded
// against the login user's home.
func (r *Runner) resolveAppDir(ctx context.Context) (string, error) {
	if r.appDir != "" {
		return r.appDir, nil
	}
	if r.remote == nil {
		return "", ErrNoRemote
	}

	dir := r.settings.RemoteAppDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := r.remote.Home(ctx)
		if err != nil {
			return "", domain.Abort(
				fmt.Sprintf("Could not resolve home directory on %s", r.remote.Target()),
				fmt.Errorf("%w: %w", domain.ErrUnreachable, err),
			)
		}
		dir = strings.TrimSuffix(home, "/") + strings.TrimPrefix(dir, "~")
	}
	r.appDir = dir
	return dir, nil
}
