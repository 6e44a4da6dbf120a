package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	verificationTokenBytes = 16
	resetSecretBytes       = 32
)

// NewVerificationToken returns 32 hex characters from 16 random bytes.
func NewVerificationToken() (string, error) {
	return randomHex(verificationTokenBytes)
}

// NewResetSecret returns a 64 hex character secret for the email link and
// the SHA-256 hex digest to store in its place.
func NewResetSecret() (secret, hash string, err error) {
	secret, err = randomHex(resetSecretBytes)
	if err != nil {
		return "", "", err
	}
	return secret, HashSecret(secret), nil
}

// HashSecret returns the SHA-256 hex digest of s.
func HashSecret(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
