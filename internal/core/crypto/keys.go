// Package crypto provides SSH key utilities used to authenticate against targets.
// This is part of the Functional Core - all functions are pure with no I/O.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidSSHKey is returned when the SSH key cannot be parsed.
	ErrInvalidSSHKey = errors.New("invalid SSH private key format")

	// ErrPassphraseRequired is returned for an encrypted key when no passphrase was given.
	ErrPassphraseRequired = errors.New("SSH private key is encrypted and no passphrase was given")

	// ErrWrongPassphrase is returned when the passphrase does not decrypt the key.
	ErrWrongPassphrase = errors.New("SSH private key passphrase is incorrect")
)

// =============================================================================
// SSH Key Utilities
// =============================================================================

// ParseSigner parses a PEM private key, decrypting it with passphrase when it is
// encrypted. An empty passphrase is only accepted for unencrypted keys.
func ParseSigner(privateKey []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, ErrInvalidSSHKey
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(privateKey, []byte(passphrase))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return signer, nil
}

// Fingerprint returns the SHA256 fingerprint of a public key, as ssh-keygen -l prints it.
func Fingerprint(pub ssh.PublicKey) string {
	return ssh.FingerprintSHA256(pub)
}

// GenerateSSHKeyPair generates a new Ed25519 SSH key pair.
// Returns the private key in PEM format and the public key in OpenSSH authorized_keys format.
// When passphrase is non-empty the private key is encrypted with it.
func GenerateSSHKeyPair(passphrase string) (privateKeyPEM []byte, publicKey string, err error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generate ed25519 key: %w", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(privKey, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(privKey, "", []byte(passphrase))
	}
	if err != nil {
		return nil, "", fmt.Errorf("marshal private key: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return nil, "", fmt.Errorf("create public key: %w", err)
	}

	return pem.EncodeToMemory(block), string(ssh.MarshalAuthorizedKey(sshPubKey)), nil
}
