package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost factor used for passwords and refresh
// tokens. Cost 12 puts verification around 100ms on commodity hardware.
const DefaultHashCost = 12

// Hasher computes and verifies salted adaptive hashes for secrets at rest.
// It is used for both passwords and refresh tokens before storage.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the given bcrypt cost. Costs outside the
// valid bcrypt range fall back to DefaultHashCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt hash of the secret. The secret is pre-digested
// with SHA-256 so inputs longer than bcrypt's 72-byte limit (signed refresh
// tokens) hash without truncation.
func (h *Hasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(digest(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether the secret matches the stored hash. A missing or
// malformed stored hash is a verification failure, never an error, so callers
// can surface a single generic "invalid credentials" signal.
func (h *Hasher) Verify(secret, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), digest(secret)) == nil
}

func digest(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(encoded, sum[:])
	return encoded
}
