package crypto_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/securenote/internal/crypto"
)

func newCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	cipher, err := crypto.NewCipher(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return cipher
}

func TestNewCipherRejectsBadKeyLength(t *testing.T) {
	_, err := crypto.NewCipher([]byte("short"))
	require.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipher := newCipher(t)

	stored, err := cipher.Encrypt("a very secret note")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored, "v1:"))
	require.NotContains(t, stored, "secret")

	require.Equal(t, "a very secret note", cipher.Decrypt(stored))
}

func TestEncryptEmptyString(t *testing.T) {
	cipher := newCipher(t)

	stored, err := cipher.Encrypt("")
	require.NoError(t, err)
	require.Equal(t, "", stored)
	require.Equal(t, "", cipher.Decrypt(""))
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	cipher := newCipher(t)

	a, err := cipher.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := cipher.Encrypt("same plaintext")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptLeavesPlaintextRowsUntouched(t *testing.T) {
	cipher := newCipher(t)

	// Rows written before encryption was enabled carry no prefix and must
	// come back verbatim.
	require.Equal(t, "plain old note", cipher.Decrypt("plain old note"))
}

func TestDecryptLeavesUndecryptableValuesUntouched(t *testing.T) {
	cipher := newCipher(t)

	require.Equal(t, "v1:!!!not-base64!!!", cipher.Decrypt("v1:!!!not-base64!!!"))
	require.Equal(t, "v1:dG9vc2hvcnQ", cipher.Decrypt("v1:dG9vc2hvcnQ"))

	otherKey, err := crypto.NewCipher(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)
	foreign, err := otherKey.Encrypt("sealed under another key")
	require.NoError(t, err)
	require.Equal(t, foreign, cipher.Decrypt(foreign))
}
