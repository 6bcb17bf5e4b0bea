// Package password hashes and verifies user passwords with argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	timeCost uint32 = 3
	memory   uint32 = 64 * 1024
	threads  uint8  = 2
	keyLen   uint32 = 32
	saltLen         = 16
)

var errInvalidHash = errors.New("invalid password hash")

// Hash returns an encoded argon2id hash embedding parameters and salt.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		timeCost,
		threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks a password against an encoded argon2id hash.
func Verify(password, encoded string) (bool, error) {
	var (
		version          int
		mem, t, par      uint32
		saltB64, hashB64 string
	)
	n, err := fmt.Sscanf(encoded, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s", &version, &mem, &t, &par, &saltB64)
	if err != nil || n != 5 || version != argon2.Version || par == 0 || par > 255 {
		return false, errInvalidHash
	}
	// Sscanf's %s is greedy, so salt and hash arrive joined by '$'.
	sep := -1
	for i, r := range saltB64 {
		if r == '$' {
			sep = i
			break
		}
	}
	if sep < 0 {
		return false, errInvalidHash
	}
	saltB64, hashB64 = saltB64[:sep], saltB64[sep+1:]

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, errInvalidHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil || len(expected) == 0 {
		return false, errInvalidHash
	}

	actual := argon2.IDKey([]byte(password), salt, t, mem, uint8(par), uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}
