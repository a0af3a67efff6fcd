package core

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// tokenIDBytes gives token ids 256 bits of entropy.
const tokenIDBytes = 32

// newTokenID returns a random jti.
func newTokenID() (string, error) {
	b := make([]byte, tokenIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newSessionID returns an opaque transport session identifier.
func newSessionID() string {
	return uuid.NewString()
}
