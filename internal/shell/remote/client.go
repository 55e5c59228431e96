// Package remote runs commands and uploads files on a target host over SSH.
// This is part of the Imperative Shell - handles I/O with remote hosts.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"sync"
	"time"

	"github.com/artpar/launchpad/internal/core/command"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Client executes commands on one target. It dials lazily on first use and
// keeps the connection until Close.
type Client struct {
	target    domain.Target
	auth      []ssh.AuthMethod
	hostKey   ssh.HostKeyCallback
	config    ClientConfig
	logger    *slog.Logger
	sshClient *ssh.Client
	mu        sync.Mutex // Protects sshClient
}

// ClientConfig configures the SSH client.
type ClientConfig struct {
	ConnectTimeout time.Duration // Default: 10 seconds
	CommandTimeout time.Duration // Default: 10 minutes
	Stdout         io.Writer     // Echo of remote stdout; nil discards
	Stderr         io.Writer     // Echo of remote stderr; nil discards
}

// DefaultClientConfig returns the default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 10 * time.Minute,
	}
}

// NewClient creates a new client for target. Nothing is dialed until the first command.
func NewClient(target domain.Target, auth []ssh.AuthMethod, hostKey ssh.HostKeyCallback, config ClientConfig, logger *slog.Logger) *Client {
	defaults := DefaultClientConfig()
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = defaults.CommandTimeout
	}
	if config.Stdout == nil {
		config.Stdout = io.Discard
	}
	if config.Stderr == nil {
		config.Stderr = io.Discard
	}
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		target:  target,
		auth:    auth,
		hostKey: hostKey,
		config:  config,
		logger:  logger.With("component", "remote", "host", target.String()),
	}
}

// Target returns the host this client talks to.
func (c *Client) Target() domain.Target {
	return c.target
}

// =============================================================================
// Connection Management
// =============================================================================

// connect establishes the SSH connection if not already connected.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		_, _, err := c.sshClient.SendRequest("keepalive@launchpad", true, nil)
		if err == nil {
			return c.sshClient, nil
		}
		c.sshClient.Close()
		c.sshClient = nil
	}

	config := &ssh.ClientConfig{
		User:            c.target.User,
		Auth:            c.auth,
		HostKeyCallback: c.hostKey,
		Timeout:         c.config.ConnectTimeout,
	}

	addr := c.target.Address()
	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, NewRemoteError("dial", c.target.String(), err.Error(), ErrConnectionFailed)
	}

	// The handshake has no context; bound it with a deadline instead.
	if deadline, ok := dialCtx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, NewRemoteError("handshake", c.target.String(), err.Error(), ErrConnectionFailed)
	}
	conn.SetDeadline(time.Time{})

	c.sshClient = ssh.NewClient(sshConn, chans, reqs)
	c.logger.Debug("connected")
	return c.sshClient, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		err := c.sshClient.Close()
		c.sshClient = nil
		return err
	}
	return nil
}

// =============================================================================
// Command Execution
// =============================================================================

// Run executes cmd on the target. A non-zero exit is reported in the Result;
// the error is reserved for connection, session and timeout failures.
func (c *Client) Run(ctx context.Context, cmd string, opts command.Options) (command.Result, error) {
	line := command.Build(cmd, opts, c.target.User == "root")
	result := command.Result{Command: line}

	client, err := c.connect(ctx)
	if err != nil {
		return result, err
	}

	session, err := client.NewSession()
	if err != nil {
		return result, NewRemoteError("session", c.target.String(), err.Error(), ErrSessionFailed)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	if opts.Quiet {
		session.Stdout = &stdout
		session.Stderr = &stderr
	} else {
		echoOut := newPrefixWriter(c.config.Stdout, "["+c.target.Host+"] out: ")
		echoErr := newPrefixWriter(c.config.Stderr, "["+c.target.Host+"] err: ")
		defer echoOut.Flush()
		defer echoErr.Flush()
		session.Stdout = io.MultiWriter(&stdout, echoOut)
		session.Stderr = io.MultiWriter(&stderr, echoErr)
	}

	c.logger.Debug("run", "command", line, "quiet", opts.Quiet)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(line)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return result, NewRemoteError("run", c.target.String(), ctx.Err().Error(), ctx.Err())
	case <-time.After(c.config.CommandTimeout):
		session.Signal(ssh.SIGKILL)
		return result, NewRemoteError("run", c.target.String(), fmt.Sprintf("command timeout after %v", c.config.CommandTimeout), ErrTimeout)
	case err := <-done:
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		if err == nil {
			return result, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		var missing *ssh.ExitMissingError
		if errors.As(err, &missing) {
			return result, NewRemoteError("run", c.target.String(), err.Error(), ErrNoExitStatus)
		}
		return result, NewRemoteError("run", c.target.String(), err.Error(), ErrSessionFailed)
	}
}

// Home returns the login user's home directory on the target.
func (c *Client) Home(ctx context.Context) (string, error) {
	res, err := c.Run(ctx, `printf '%s' "$HOME"`, command.Options{Quiet: true})
	if err != nil {
		return "", err
	}
	if res.Failed() || res.Stdout == "" {
		return "", NewRemoteError("home", c.target.String(), "cannot resolve $HOME", ErrSessionFailed)
	}
	return res.Stdout, nil
}

// =============================================================================
// File Transfer
// =============================================================================

// Upload streams r to remotePath over SFTP, creating parent directories.
func (c *Client) Upload(ctx context.Context, r io.Reader, remotePath string, mode os.FileMode) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return NewRemoteError("upload", c.target.String(), err.Error(), ErrUploadFailed)
	}
	defer sftpClient.Close()

	c.logger.Debug("upload", "path", remotePath)

	done := make(chan error, 1)
	go func() {
		done <- copyToRemote(sftpClient, r, remotePath, mode)
	}()

	select {
	case <-ctx.Done():
		sftpClient.Close()
		return NewRemoteError("upload", c.target.String(), ctx.Err().Error(), ctx.Err())
	case <-time.After(c.config.CommandTimeout):
		sftpClient.Close()
		return NewRemoteError("upload", c.target.String(), fmt.Sprintf("upload timeout after %v", c.config.CommandTimeout), ErrTimeout)
	case err := <-done:
		if err != nil {
			return NewRemoteError("upload", c.target.String(), err.Error(), ErrUploadFailed)
		}
		return nil
	}
}

func copyToRemote(client *sftp.Client, r io.Reader, remotePath string, mode os.FileMode) error {
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", remotePath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", remotePath, err)
	}
	return client.Chmod(remotePath, mode)
}
