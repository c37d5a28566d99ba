// Package hashing implements the credential digest primitives: salt
// generation, the keyed password digest, and reset token generation.
//
// The digest format is a fixed contract shared with every stored credential:
// hex-encoded HMAC-SHA1 keyed by the per-credential salt, 40 hex characters.
// Changing the algorithm invalidates every stored digest and history entry.
package hashing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

const (
	// SaltByteLength is the default number of random salt bytes; hex
	// encoding doubles it to 32 characters.
	SaltByteLength = 16

	// resetTokenRandomBytes feeds the one-way digest behind reset tokens.
	resetTokenRandomBytes = 32

	// DigestHexLength is the length of every digest and reset token value.
	DigestHexLength = 40
)

// GenerateSalt returns byteLength cryptographically strong random bytes,
// hex-encoded. Failure of the randomness source is the only error and is
// fatal to the caller.
func GenerateSalt(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = SaltByteLength
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// NewSalt returns a salt of the default length (16 bytes, 32 hex chars).
func NewSalt() (string, error) {
	return GenerateSalt(SaltByteLength)
}

// ComputeDigest derives the keyed one-way digest of password using salt as
// the HMAC key. Deterministic: identical (password, salt) pairs always yield
// identical output.
func ComputeDigest(password, salt string) string {
	mac := hmac.New(sha1.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateResetToken produces an unguessable bearer token: a SHA-1 digest
// over a fresh batch of random bytes. The value carries no identity; the
// store record binds it to a credential.
func GenerateResetToken() (string, error) {
	buf := make([]byte, resetTokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	sum := sha1.Sum(buf)
	return hex.EncodeToString(sum[:]), nil
}
