// Package id generates task and request identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewTaskID returns an opaque 8-hex-character task token. Tasks are
// short-lived and few enough that 32 random bits make collisions negligible.
func NewTaskID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// NewRequestID returns a UUID for correlating HTTP requests in logs.
func NewRequestID() string {
	return uuid.NewString()
}
