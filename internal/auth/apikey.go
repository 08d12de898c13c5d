// Package auth validates and hashes the opaque API keys callers present.
// Only the HMAC-SHA256 digest of a key is ever stored or logged.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const apiKeyPrefix = "sk-"

// ValidFormat reports whether a presented API key has the expected
// shape. This is a cheap syntactic check performed before any hashing
// or database lookup.
func ValidFormat(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	return strings.HasPrefix(apiKey, apiKeyPrefix) && len(apiKey) > len(apiKeyPrefix)
}

// Hasher computes peppered HMAC-SHA256 digests of API keys.
type Hasher struct {
	pepper []byte
}

// NewHasher creates a Hasher with the given server-side pepper.
func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: []byte(pepper)}
}

// Hash returns the lowercase hex HMAC-SHA256 digest of an API key.
func (h *Hasher) Hash(apiKey string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(apiKey))
	return hex.EncodeToString(mac.Sum(nil))
}
