// Package utils provides small helpers shared across pipeline-hub.
//
// Features:
//   - Collision-resistant row IDs (cuid)
//   - Unguessable URL-safe tokens for share links and webhooks
//   - Request IDs for log correlation
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lucsky/cuid"
)

const (
	// ShareTokenBytes is the entropy of a pipeline share token.
	ShareTokenBytes = 10
	// WebhookTokenBytes is the entropy of a webhook token.
	WebhookTokenBytes = 24
)

// NewID returns a new collision-resistant identifier for stored rows.
func NewID() string {
	return cuid.New()
}

// GenerateToken returns n random bytes encoded as unpadded base64url.
//
// The result is safe to embed in URL paths without escaping.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateRandomID generates a cryptographically secure random hex ID.
// For odd lengths the result is one character shorter.
func GenerateRandomID(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateRequestID generates a request ID in the format "req-{hex}-{unix}".
func GenerateRequestID() (string, error) {
	id, err := GenerateRandomID(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return fmt.Sprintf("req-%s-%d", id, time.Now().Unix()), nil
}

// MustGenerateRequestID generates a request ID or panics on failure.
func MustGenerateRequestID() string {
	id, err := GenerateRequestID()
	if err != nil {
		panic(fmt.Sprintf("failed to generate request ID: %v", err))
	}
	return id
}
