package remote

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/launchpad/internal/core/crypto"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrNoAuthMethod is returned when neither a key file nor an agent is usable.
var ErrNoAuthMethod = errors.New("no SSH key file or agent available")

// ExpandHome replaces a leading ~ with the local user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// AuthMethods builds the client auth methods: the private key file when it exists,
// then the ssh-agent at SSH_AUTH_SOCK when useAgent is set.
func AuthMethods(keyFile, passphrase string, useAgent bool, logger *slog.Logger) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if keyFile != "" {
		path := ExpandHome(keyFile)
		pemBytes, err := os.ReadFile(path)
		switch {
		case err == nil:
			signer, err := crypto.ParseSigner(pemBytes, passphrase)
			if err != nil {
				return nil, fmt.Errorf("load SSH key %s: %w", path, err)
			}
			logger.Debug("loaded SSH key", "path", path, "fingerprint", crypto.Fingerprint(signer.PublicKey()))
			methods = append(methods, ssh.PublicKeys(signer))
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("SSH key file not found", "path", path)
		default:
			return nil, fmt.Errorf("read SSH key %s: %w", path, err)
		}
	}

	if useAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				logger.Warn("ssh-agent unavailable", "socket", sock, "error", err)
			} else {
				methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	if len(methods) == 0 {
		return nil, ErrNoAuthMethod
	}
	return methods, nil
}

// HostKeyCallback verifies host keys against knownHostsFile when it exists.
// Without a known_hosts file every host key is accepted, and a warning is logged.
func HostKeyCallback(knownHostsFile string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if knownHostsFile != "" {
		path := ExpandHome(knownHostsFile)
		if _, err := os.Stat(path); err == nil {
			cb, err := knownhosts.New(path)
			if err != nil {
				return nil, fmt.Errorf("load known hosts %s: %w", path, err)
			}
			return cb, nil
		}
	}
	logger.Warn("host keys are not verified; set ssh.known_hosts to a known_hosts file")
	return ssh.InsecureIgnoreHostKey(), nil
}
