// Package crypto provides the at-rest cipher for note title and content.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const ciphertextPrefix = "v1:"

// Cipher encrypts note fields with XChaCha20-Poly1305 under a process-wide
// key. Stored values look like "v1:<base64(nonce||sealed)>".
type Cipher struct {
	key []byte
}

// NewCipher validates the key length up front so a bad ENCRYPTION_KEY fails
// at startup rather than on first use.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	c := &Cipher{key: make([]byte, len(key))}
	copy(c.key, key)
	return c, nil
}

// Encrypt seals the plaintext with a random nonce. The empty string maps to
// the empty string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("new aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(plaintext), nil)...)
	return ciphertextPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a stored value. Values that do not carry the expected
// prefix, fail to decode, or fail authentication are returned unchanged:
// rows written before encryption was enabled stay readable.
func (c *Cipher) Decrypt(stored string) string {
	if stored == "" {
		return ""
	}
	encoded, ok := strings.CutPrefix(stored, ciphertextPrefix)
	if !ok {
		return stored
	}
	blob, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(blob) < chacha20poly1305.NonceSizeX {
		return stored
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return stored
	}
	nonce, sealed := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return stored
	}
	return string(plaintext)
}
