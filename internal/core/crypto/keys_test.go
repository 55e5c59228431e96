package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// =============================================================================
// ParseSigner Tests
// =============================================================================

func TestParseSigner_Unencrypted(t *testing.T) {
	privPEM, pub, err := GenerateSSHKeyPair("")
	require.NoError(t, err)

	signer, err := ParseSigner(privPEM, "")
	require.NoError(t, err)
	assert.Equal(t, pub, string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
}

func TestParseSigner_UnencryptedIgnoresPassphrase(t *testing.T) {
	privPEM, _, err := GenerateSSHKeyPair("")
	require.NoError(t, err)

	_, err = ParseSigner(privPEM, "unused")
	assert.NoError(t, err)
}

func TestParseSigner_Encrypted(t *testing.T) {
	privPEM, _, err := GenerateSSHKeyPair("hunter2")
	require.NoError(t, err)

	_, err = ParseSigner(privPEM, "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	_, err = ParseSigner(privPEM, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	signer, err := ParseSigner(privPEM, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())
}

func TestParseSigner_Garbage(t *testing.T) {
	_, err := ParseSigner([]byte("not a key"), "")
	assert.ErrorIs(t, err, ErrInvalidSSHKey)
}

// =============================================================================
// Fingerprint Tests
// =============================================================================

func TestFingerprint_MatchesSigner(t *testing.T) {
	privPEM, pub, err := GenerateSSHKeyPair("")
	require.NoError(t, err)

	signer, err := ParseSigner(privPEM, "")
	require.NoError(t, err)
	fp := Fingerprint(signer.PublicKey())
	assert.True(t, strings.HasPrefix(fp, "SHA256:"))

	pubKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pub))
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(pubKey), fp)
}
