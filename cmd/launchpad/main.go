package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/artpar/launchpad/internal/core/domain"
	coreinventory "github.com/artpar/launchpad/internal/core/inventory"
	"github.com/artpar/launchpad/internal/shell/deploy"
	"github.com/artpar/launchpad/internal/shell/docker"
	"github.com/artpar/launchpad/internal/shell/inventory"
	"github.com/artpar/launchpad/internal/shell/local"
	"github.com/artpar/launchpad/internal/shell/prompt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit Codes
const (
	ExitSuccess     = 0
	ExitAborted     = 1
	ExitConfigError = 1
	ExitUsage       = 2
)

// ErrUsage marks a command line that cannot be run.
var ErrUsage = errors.New("usage error")

func main() {
	os.Exit(NewApp().Execute(os.Args[1:]))
}

// =============================================================================
// App
// =============================================================================

// App wires configuration, collaborators and the task registry into one invocation.
// Nil collaborators are built from the configuration.
type App struct {
	stdout   io.Writer
	stderr   io.Writer
	registry *Registry

	dial     func(cfg *Config, logger *slog.Logger) Dialer
	local    deploy.Executor
	confirm  prompt.Confirmer
	docker   deploy.DockerFunc
	discover DiscoverFunc
}

// NewApp creates an App on the process streams.
func NewApp() *App {
	return &App{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		registry: DefaultRegistry(),
	}
}

// Execute parses args, runs the requested tasks in order and returns the exit code.
func (a *App) Execute(args []string) int {
	var (
		configPath  string
		list        bool
		showVersion bool
		code        = ExitSuccess
	)

	root := &cobra.Command{
		Use:           "launchpad [flags] task[:arg] [task[:arg]...]",
		Short:         "Prepare servers and deploy a containerized application over SSH",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, specs []string) error {
			switch {
			case showVersion:
				fmt.Fprintf(a.stdout, "launchpad %s (built %s)\n", Version, BuildTime)
				return nil
			case list:
				a.printTasks()
				return nil
			case len(specs) == 0:
				return fmt.Errorf("%w: no task given", ErrUsage)
			}

			invocations, err := a.parseTasks(specs)
			if err != nil {
				return err
			}
			code = a.run(cmd.Context(), configPath, invocations)
			return nil
		},
	}
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./launchpad.yaml)")
	root.Flags().BoolVarP(&list, "list", "l", false, "list available tasks and exit")
	root.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "%v\n\n%s", err, root.UsageString())
		return ExitUsage
	}
	return code
}

// invocation is one parsed task[:arg] from the command line.
type invocation struct {
	task Task
	arg  string
}

// parseTasks resolves every task[:arg] before anything runs.
func (a *App) parseTasks(specs []string) ([]invocation, error) {
	var (
		out     []invocation
		unknown []string
	)
	for _, spec := range specs {
		name, arg, _ := strings.Cut(spec, ":")
		task, ok := a.registry.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if task.NeedsArg && arg == "" {
			return nil, fmt.Errorf("%w: task %s needs an argument, e.g. %s:<value>", ErrUsage, name, name)
		}
		out = append(out, invocation{task: task, arg: arg})
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: task(s) not found: %s", ErrUsage, strings.Join(unknown, ", "))
	}
	return out, nil
}

func (a *App) printTasks() {
	fmt.Fprintln(a.stdout, "Available tasks:")
	fmt.Fprintln(a.stdout)
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 4, ' ', 0)
	for _, t := range a.registry.Tasks() {
		fmt.Fprintf(tw, "    %s\t%s\n", t.Name, t.Help)
	}
	tw.Flush()
}

// run loads the configuration and executes the tasks in order.
func (a *App) run(ctx context.Context, configPath string, invocations []invocation) int {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	settings, err := cfg.Settings()
	if err != nil {
		fmt.Fprintf(a.stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	source := cfg.InventorySource()
	if source.Enabled() {
		if err := source.Validate(); err != nil {
			fmt.Fprintf(a.stderr, "configuration error: %v\n", err)
			return ExitConfigError
		}
	}

	runID := uuid.NewString()
	logger := SetupLogger(cfg, a.stderr).With("run_id", runID)
	logger.Info("starting launchpad", "version", Version, "tasks", len(invocations))

	session := NewSession(settings, source, a.discoverFunc(logger), a.dialer(cfg, logger), deploy.Deps{
		Local:   a.localExecutor(cfg, logger),
		Confirm: a.confirmer(),
		Out:     a.stdout,
		Logger:  logger,
		RunID:   runID,
		Docker:  a.dockerFunc(cfg),
	})
	defer session.Close()

	for _, inv := range invocations {
		logger.Debug("running task", "task", inv.task.Name, "arg", inv.arg)
		if err := inv.task.Handler(ctx, session, inv.arg); err != nil {
			return a.fail(logger, inv.task.Name, err)
		}
	}

	fmt.Fprintln(a.stdout, "\nDone.")
	return ExitSuccess
}

// fail reports a task error. Aborts print their operator message; anything
// else is reported as it is.
func (a *App) fail(logger *slog.Logger, task string, err error) int {
	logger.Error("task failed", "task", task, "error", err)

	message := err.Error()
	var abortErr *domain.AbortError
	if errors.As(err, &abortErr) {
		message = abortErr.Message
	}
	fmt.Fprintf(a.stderr, "\nFatal error: %s\n\nAborting.\n", message)
	return ExitAborted
}

// =============================================================================
// Collaborators
// =============================================================================

func (a *App) dialer(cfg *Config, logger *slog.Logger) Dialer {
	if a.dial != nil {
		return a.dial(cfg, logger)
	}
	return SSHDialer(cfg, a.stdout, a.stderr, logger)
}

func (a *App) localExecutor(cfg *Config, logger *slog.Logger) deploy.Executor {
	if a.local != nil {
		return a.local
	}
	return local.NewShell(local.Config{
		Stdout:  a.stdout,
		Stderr:  a.stderr,
		Timeout: cfg.SSH.CommandTimeout,
	}, logger)
}

func (a *App) confirmer() prompt.Confirmer {
	if a.confirm != nil {
		return a.confirm
	}
	return prompt.NewTerminal()
}

func (a *App) dockerFunc(cfg *Config) deploy.DockerFunc {
	if a.docker != nil {
		return a.docker
	}
	return func(ctx context.Context) (docker.Client, error) {
		cli, err := docker.NewDockerClient(ctx, cfg.Docker.Host)
		if err != nil {
			return nil, err
		}
		return cli, nil
	}
}

func (a *App) discoverFunc(logger *slog.Logger) DiscoverFunc {
	if a.discover != nil {
		return a.discover
	}
	return func(ctx context.Context, source coreinventory.Source) ([]string, error) {
		return inventory.Discover(ctx, source, logger.With("component", "inventory"))
	}
}
