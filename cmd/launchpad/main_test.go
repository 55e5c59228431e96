package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/artpar/launchpad/internal/core/command"
	"github.com/artpar/launchpad/internal/core/domain"
	coreinventory "github.com/artpar/launchpad/internal/core/inventory"
	"github.com/artpar/launchpad/internal/shell/prompt"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// =============================================================================
// Fakes
// =============================================================================

type fakeExec struct {
	mu       sync.Mutex
	commands []string
	exits    map[string]int
	errs     map[string]error
}

func newFakeExec() *fakeExec {
	return &fakeExec{exits: map[string]int{}, errs: map[string]error{}}
}

func (f *fakeExec) Run(_ context.Context, cmd string, _ command.Options) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	if err := f.errs[cmd]; err != nil {
		return command.Result{Command: cmd}, err
	}
	return command.Result{Command: cmd, ExitCode: f.exits[cmd]}, nil
}

type fakeConn struct {
	*fakeExec
	target domain.Target
	closed bool
}

func (c *fakeConn) Upload(context.Context, io.Reader, string, os.FileMode) error { return nil }
func (c *fakeConn) Home(context.Context) (string, error)                         { return "/root", nil }
func (c *fakeConn) Target() domain.Target                                        { return c.target }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// testApp is an App whose hosts, shell and prompt are fakes.
type testApp struct {
	*App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	local  *fakeExec
	conns  map[string]*fakeConn
	dialed []string

	// script configures each new connection before it is handed out.
	script func(c *fakeConn)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	clearEnv(t)

	ta := &testApp{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		local:  newFakeExec(),
		conns:  map[string]*fakeConn{},
	}
	ta.App = &App{
		stdout:   ta.stdout,
		stderr:   ta.stderr,
		registry: DefaultRegistry(),
		local:    ta.local,
		confirm:  prompt.Fixed(false),
		dial: func(*Config, *slog.Logger) Dialer {
			return func(target domain.Target) (hostConn, error) {
				ta.dialed = append(ta.dialed, target.String())
				c := &fakeConn{fakeExec: newFakeExec(), target: target}
				if ta.script != nil {
					ta.script(c)
				}
				ta.conns[target.Host] = c
				return c, nil
			}
		},
		discover: func(context.Context, coreinventory.Source) ([]string, error) {
			return nil, errors.New("discovery not expected")
		},
	}
	return ta
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launchpad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const baseConfig = `
hosts:
  - web1
  - deploy@web2:2222
git:
  push_url: git@github.com:acme/shop.git
  pull_url: https://github.com/acme/shop.git
app:
  remote_dir: /srv/shop
`

// =============================================================================
// Command Line Tests
// =============================================================================

func TestExecute_Version(t *testing.T) {
	ta := newTestApp(t)

	assert.Equal(t, ExitSuccess, ta.Execute([]string{"--version"}))
	assert.Contains(t, ta.stdout.String(), "launchpad dev")
}

func TestExecute_List(t *testing.T) {
	ta := newTestApp(t)

	assert.Equal(t, ExitSuccess, ta.Execute([]string{"--list"}))
	for _, name := range []string{"dev", "remote", "test_connection", "prepare_server", "deploy", "commit", "start", "stop", "status", "is_available"} {
		assert.Contains(t, ta.stdout.String(), "    "+name)
	}
	assert.Empty(t, ta.dialed)
}

func TestExecute_NoTask(t *testing.T) {
	ta := newTestApp(t)

	assert.Equal(t, ExitUsage, ta.Execute(nil))
	assert.Contains(t, ta.stderr.String(), "no task given")
}

func TestExecute_UnknownTaskRunsNothing(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, baseConfig)

	code := ta.Execute([]string{"--config", path, "test_connection", "launch", "deploy"})

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, ta.stderr.String(), "task(s) not found: launch")
	assert.Empty(t, ta.dialed)
	assert.Empty(t, ta.local.commands)
}

func TestExecute_MissingTaskArgument(t *testing.T) {
	ta := newTestApp(t)

	assert.Equal(t, ExitUsage, ta.Execute([]string{"is_available"}))
	assert.Contains(t, ta.stderr.String(), "is_available:<value>")
}

func TestExecute_UnknownFlag(t *testing.T) {
	ta := newTestApp(t)
	assert.Equal(t, ExitUsage, ta.Execute([]string{"--parallel", "deploy"}))
}

func TestExecute_ConfigError(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, "ssh:\n  port: 0\n")

	assert.Equal(t, ExitConfigError, ta.Execute([]string{"--config", path, "deploy"}))
	assert.Contains(t, ta.stderr.String(), "configuration error")
	assert.Empty(t, ta.dialed)
}

// =============================================================================
// Task Dispatch Tests
// =============================================================================

func TestExecute_PerHostTaskRunsHostsInOrder(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, baseConfig)

	code := ta.Execute([]string{"-c", path, "test_connection"})

	require.Equal(t, ExitSuccess, code, ta.stderr.String())
	assert.Equal(t, []string{"root@web1:22", "deploy@web2:2222"}, ta.dialed)
	assert.Equal(t, []string{"uname -a"}, ta.conns["web1"].commands)
	assert.Equal(t, []string{"uname -a"}, ta.conns["web2"].commands)
	assert.Contains(t, ta.stdout.String(), "[web1] Executing task 'test_connection'")
	assert.Contains(t, ta.stdout.String(), "[web2] Executing task 'test_connection'")
	assert.Contains(t, ta.stdout.String(), "Done.")
	assert.True(t, ta.conns["web1"].closed)
	assert.True(t, ta.conns["web2"].closed)
}

func TestExecute_ConnectionReusedAcrossTasks(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, baseConfig)

	code := ta.Execute([]string{"-c", path, "test_connection", "is_available:node --version", "stop"})

	require.Equal(t, ExitSuccess, code, ta.stderr.String())
	assert.Len(t, ta.dialed, 2)
	assert.Equal(t, []string{
		"uname -a",
		"node --version",
		"docker-compose -f docker-compose.yml stop",
	}, ta.conns["web1"].commands)
}

func TestExecute_AbortStopsTheRun(t *testing.T) {
	ta := newTestApp(t)
	ta.script = func(c *fakeConn) {
		if c.target.Host == "web1" {
			c.errs["uname -a"] = errors.New("connection refused")
		}
	}
	path := writeConfig(t, baseConfig)

	code := ta.Execute([]string{"-c", path, "test_connection", "deploy"})

	assert.Equal(t, ExitAborted, code)
	assert.Contains(t, ta.stderr.String(), "Fatal error: Cannot continue. Aborting...")
	assert.Contains(t, ta.stderr.String(), "Aborting.")
	assert.Equal(t, []string{"root@web1:22"}, ta.dialed)
	assert.NotContains(t, ta.stdout.String(), "Done.")
}

func TestExecute_NoHostsAborts(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, "app:\n  remote_dir: /srv/shop\n")

	code := ta.Execute([]string{"-c", path, "deploy"})

	assert.Equal(t, ExitAborted, code)
	assert.Contains(t, ta.stderr.String(), "Fatal error: No hosts to run on")
}

func TestExecute_DevRunsLifecycleLocally(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, baseConfig)

	code := ta.Execute([]string{"-c", path, "dev", "start", "stop"})

	require.Equal(t, ExitSuccess, code, ta.stderr.String())
	assert.Empty(t, ta.dialed)
	assert.Equal(t, []string{
		"docker-compose -f docker-compose.yml up -d",
		"docker-compose -f docker-compose.yml stop",
	}, ta.local.commands)
}

func TestExecute_RemoteSwitchesBack(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, baseConfig)

	code := ta.Execute([]string{"-c", path, "dev", "stop", "remote", "start"})

	require.Equal(t, ExitSuccess, code, ta.stderr.String())
	assert.Equal(t, []string{"docker-compose -f docker-compose.yml stop"}, ta.local.commands)
	assert.Equal(t, []string{"docker-compose -f docker-compose.yml up -d"}, ta.conns["web1"].commands)
	assert.Equal(t, []string{"docker-compose -f docker-compose.yml up -d"}, ta.conns["web2"].commands)
}

func TestExecute_CommitRunsOnceLocally(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, baseConfig)

	code := ta.Execute([]string{"-c", path, "commit"})

	require.Equal(t, ExitSuccess, code, ta.stderr.String())
	assert.Empty(t, ta.dialed)
	assert.Equal(t, []string{"git rev-parse --git-dir", "git add -p && git commit -a"}, ta.local.commands)
}

func TestExecute_DeployWithGit(t *testing.T) {
	ta := newTestApp(t)
	ta.script = func(c *fakeConn) {
		c.exits["docker --version"] = 127
	}
	path := writeConfig(t, `
hosts: [web1]
git:
  pull_url: https://github.com/acme/shop.git
app:
  remote_dir: /srv/shop
`)

	code := ta.Execute([]string{"-c", path, "deploy"})

	require.Equal(t, ExitSuccess, code, ta.stderr.String())
	assert.Equal(t, []string{"git push origin master"}, ta.local.commands)
	assert.Equal(t, []string{
		"git --version",
		"docker --version",
		"test -d /srv/shop",
		"test -d .git",
		"git pull",
	}, ta.conns["web1"].commands)
}

func TestExecute_InventoryHostsAppended(t *testing.T) {
	ta := newTestApp(t)
	var gotSource coreinventory.Source
	ta.discover = func(_ context.Context, source coreinventory.Source) ([]string, error) {
		gotSource = source
		return []string{"web1", "203.0.113.9"}, nil
	}
	path := writeConfig(t, `
hosts: [web1]
inventory:
  provider: hetzner
  selector: role=web
  token: secret
`)

	code := ta.Execute([]string{"-c", path, "test_connection"})

	require.Equal(t, ExitSuccess, code, ta.stderr.String())
	assert.Equal(t, coreinventory.ProviderHetzner, gotSource.Provider)
	assert.Equal(t, []string{"root@web1:22", "root@203.0.113.9:22"}, ta.dialed)
}

func TestExecute_InventoryFailureAborts(t *testing.T) {
	ta := newTestApp(t)
	ta.discover = func(context.Context, coreinventory.Source) ([]string, error) {
		return nil, errors.New("401 unauthorized")
	}
	path := writeConfig(t, `
inventory:
  provider: digitalocean
  selector: web
  token: bad
`)

	assert.Equal(t, ExitAborted, ta.Execute([]string{"-c", path, "deploy"}))
	assert.Contains(t, ta.stderr.String(), "Fatal error: Could not discover hosts")
}

func TestExecute_InvalidInventoryIsConfigError(t *testing.T) {
	ta := newTestApp(t)
	path := writeConfig(t, "inventory:\n  provider: hetzner\n")

	assert.Equal(t, ExitConfigError, ta.Execute([]string{"-c", path, "deploy"}))
	assert.Contains(t, ta.stderr.String(), "configuration error")
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Task{Name: "deploy"})

	assert.Panics(t, func() { r.Register(Task{Name: "deploy"}) })
}

func TestRegistry_LookupAndOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(Task{Name: "b"})
	r.Register(Task{Name: "a"})

	_, ok := r.Lookup("a")
	assert.True(t, ok)
	_, ok = r.Lookup("c")
	assert.False(t, ok)

	var names []string
	for _, task := range r.Tasks() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"b", "a"}, names)
}
