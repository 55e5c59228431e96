package remote

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/launchpad/internal/core/command"
	"github.com/artpar/launchpad/internal/core/crypto"
	"github.com/artpar/launchpad/internal/core/domain"
	gliderssh "github.com/gliderlabs/ssh"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Test Server
// =============================================================================

// scripted is the canned response for one raw command.
type scripted struct {
	stdout string
	stderr string
	exit   int
	hang   bool
}

type testServer struct {
	addr     string
	mu       sync.Mutex
	received []string
	script   map[string]scripted
}

func (s *testServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	pemBytes, _, err := crypto.GenerateSSHKeyPair("")
	require.NoError(t, err)
	signer, err := crypto.ParseSigner(pemBytes, "")
	require.NoError(t, err)
	return signer
}

func startServer(t *testing.T, script map[string]scripted) *testServer {
	t.Helper()

	ts := &testServer{script: script}
	srv := &gliderssh.Server{
		Handler: func(s gliderssh.Session) {
			raw := s.RawCommand()
			ts.mu.Lock()
			ts.received = append(ts.received, raw)
			resp := ts.script[raw]
			ts.mu.Unlock()

			if resp.hang {
				select {
				case <-s.Context().Done():
				case <-time.After(5 * time.Second):
				}
				return
			}
			io.WriteString(s, resp.stdout)
			io.WriteString(s.Stderr(), resp.stderr)
			s.Exit(resp.exit)
		},
		PublicKeyHandler: func(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
			return true
		},
		SubsystemHandlers: map[string]gliderssh.SubsystemHandler{
			"sftp": func(s gliderssh.Session) {
				server, err := sftp.NewServer(s)
				if err != nil {
					return
				}
				server.Serve()
				server.Close()
			},
		},
	}
	srv.AddHostKey(newSigner(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	ts.addr = ln.Addr().String()
	return ts
}

func newTestClient(t *testing.T, ts *testServer, user string, config ClientConfig) *Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ts.addr)
	require.NoError(t, err)
	target, err := domain.ParseTarget(user+"@"+host+":"+portStr, "deploy", 22)
	require.NoError(t, err)

	auth := []ssh.AuthMethod{ssh.PublicKeys(newSigner(t))}
	client := NewClient(target, auth, ssh.InsecureIgnoreHostKey(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_Success(t *testing.T) {
	ts := startServer(t, map[string]scripted{
		"uname -a": {stdout: "Linux web1 6.1.0\n"},
	})
	var out bytes.Buffer
	client := newTestClient(t, ts, "deploy", ClientConfig{Stdout: &out})

	res, err := client.Run(context.Background(), "uname -a", command.Options{})
	require.NoError(t, err)

	assert.True(t, res.Succeeded())
	assert.Equal(t, "uname -a", res.Command)
	assert.Equal(t, "Linux web1 6.1.0\n", res.Stdout)
	assert.Equal(t, "[127.0.0.1] out: Linux web1 6.1.0\n", out.String())
}

func TestRun_EchoesUnterminatedOutput(t *testing.T) {
	ts := startServer(t, map[string]scripted{
		"printf done": {stdout: "line1\ndone"},
	})
	var out bytes.Buffer
	client := newTestClient(t, ts, "deploy", ClientConfig{Stdout: &out})

	res, err := client.Run(context.Background(), "printf done", command.Options{})
	require.NoError(t, err)

	assert.Equal(t, "line1\ndone", res.Stdout)
	assert.Equal(t, "[127.0.0.1] out: line1\n[127.0.0.1] out: done\n", out.String())
}

func TestRun_QuietDoesNotEcho(t *testing.T) {
	ts := startServer(t, map[string]scripted{
		"git --version": {stdout: "git version 2.39.2\n"},
	})
	var out bytes.Buffer
	client := newTestClient(t, ts, "deploy", ClientConfig{Stdout: &out})

	res, err := client.Run(context.Background(), "git --version", command.Options{Quiet: true})
	require.NoError(t, err)

	assert.Equal(t, "git version 2.39.2\n", res.Stdout)
	assert.Empty(t, out.String())
}

func TestRun_NonZeroExitIsResult(t *testing.T) {
	ts := startServer(t, map[string]scripted{
		"docker --version": {stderr: "sh: docker: not found\n", exit: 127},
	})
	client := newTestClient(t, ts, "deploy", ClientConfig{})

	res, err := client.Run(context.Background(), "docker --version", command.Options{Quiet: true})
	require.NoError(t, err)

	assert.True(t, res.Failed())
	assert.Equal(t, 127, res.ExitCode)
	assert.Equal(t, "sh: docker: not found\n", res.Stderr)
}

func TestRun_SudoAndDir(t *testing.T) {
	ts := startServer(t, nil)

	client := newTestClient(t, ts, "deploy", ClientConfig{})
	_, err := client.Run(context.Background(), "docker-compose up -d", command.Options{Dir: "/srv/app", Sudo: true})
	require.NoError(t, err)

	root := newTestClient(t, ts, "root", ClientConfig{})
	_, err = root.Run(context.Background(), "docker-compose up -d", command.Options{Dir: "/srv/app", Sudo: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cd /srv/app && sudo -n sh -c 'docker-compose up -d'",
		"cd /srv/app && docker-compose up -d",
	}, ts.commands())
}

func TestRun_ReusesConnection(t *testing.T) {
	ts := startServer(t, nil)
	client := newTestClient(t, ts, "deploy", ClientConfig{})

	for i := 0; i < 3; i++ {
		_, err := client.Run(context.Background(), "true", command.Options{Quiet: true})
		require.NoError(t, err)
	}

	client.mu.Lock()
	connected := client.sshClient != nil
	client.mu.Unlock()
	assert.True(t, connected)
	assert.Len(t, ts.commands(), 3)
}

func TestRun_Timeout(t *testing.T) {
	ts := startServer(t, map[string]scripted{
		"sleep 60": {hang: true},
	})
	client := newTestClient(t, ts, "deploy", ClientConfig{CommandTimeout: 100 * time.Millisecond})

	_, err := client.Run(context.Background(), "sleep 60", command.Options{Quiet: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRun_ContextCanceled(t *testing.T) {
	ts := startServer(t, map[string]scripted{
		"sleep 60": {hang: true},
	})
	client := newTestClient(t, ts, "deploy", ClientConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Run(ctx, "sleep 60", command.Options{Quiet: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	target := domain.Target{User: "deploy", Host: "127.0.0.1", Port: addr.Port}
	client := NewClient(target, nil, nil, ClientConfig{ConnectTimeout: time.Second}, nil)

	_, err = client.Run(context.Background(), "uname -a", command.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "dial", remoteErr.Op)
	assert.Contains(t, remoteErr.Error(), "deploy@127.0.0.1:")
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(domain.Target{User: "deploy", Host: "web1", Port: 22}, nil, nil, ClientConfig{}, nil)

	defaults := DefaultClientConfig()
	assert.Equal(t, defaults.ConnectTimeout, client.config.ConnectTimeout)
	assert.Equal(t, defaults.CommandTimeout, client.config.CommandTimeout)
	assert.Equal(t, io.Discard, client.config.Stdout)
	assert.NotNil(t, client.hostKey)
}

func TestHome(t *testing.T) {
	ts := startServer(t, map[string]scripted{
		`printf '%s' "$HOME"`: {stdout: "/home/deploy"},
	})
	client := newTestClient(t, ts, "deploy", ClientConfig{})

	home, err := client.Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/deploy", home)
}

func TestHome_Empty(t *testing.T) {
	ts := startServer(t, nil)
	client := newTestClient(t, ts, "deploy", ClientConfig{})

	_, err := client.Home(context.Background())
	assert.ErrorIs(t, err, ErrSessionFailed)
}

// =============================================================================
// Upload Tests
// =============================================================================

func TestUpload(t *testing.T) {
	ts := startServer(t, nil)
	client := newTestClient(t, ts, "deploy", ClientConfig{})

	dest := filepath.Join(t.TempDir(), "staging", "shop-1234.tar.gz")
	err := client.Upload(context.Background(), strings.NewReader("archive bytes"), filepath.ToSlash(dest), 0o600)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// =============================================================================
// Prefix Writer Tests
// =============================================================================

func TestPrefixWriter_HoldsPartialLines(t *testing.T) {
	var out bytes.Buffer
	w := newPrefixWriter(&out, "[web1] out: ")

	w.Write([]byte("first\nsec"))
	assert.Equal(t, "[web1] out: first\n", out.String())

	w.Write([]byte("ond\n"))
	assert.Equal(t, "[web1] out: first\n[web1] out: second\n", out.String())
}

func TestPrefixWriter_FlushWritesPartialLine(t *testing.T) {
	var out bytes.Buffer
	w := newPrefixWriter(&out, "[web1] out: ")

	w.Write([]byte("line1\nno-newline-tail"))
	require.NoError(t, w.Flush())
	assert.Equal(t, "[web1] out: line1\n[web1] out: no-newline-tail\n", out.String())

	require.NoError(t, w.Flush())
	assert.Equal(t, "[web1] out: line1\n[web1] out: no-newline-tail\n", out.String())
}
