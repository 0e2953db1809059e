package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// KeyPrefix identifies campusgate API keys
	KeyPrefix = "cg_"
	// KeyLength is the number of random bytes in a key (32 bytes = 256 bits)
	KeyLength = 32
	// DefaultKeyTTL is the lifetime of a newly issued key
	DefaultKeyTTL = 30 * 24 * time.Hour

	displayPrefixLen = 8
)

// KeyGenerator generates and hashes API keys
type KeyGenerator struct{}

// NewKeyGenerator creates a new key generator
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// Generate creates a new API key.
// Format: cg_<hex(32 random bytes)>
// The plaintext is handed to the caller once; only HashKey(plaintext) is stored.
func (kg *KeyGenerator) Generate() (plaintext string, keyHash string, err error) {
	randomBytes := make([]byte, KeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext = KeyPrefix + hex.EncodeToString(randomBytes)
	return plaintext, kg.HashKey(plaintext), nil
}

// HashKey computes the SHA256 hex digest of a key for storage and lookup
func (kg *KeyGenerator) HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ValidateKeyFormat checks if a key has the correct format
func (kg *KeyGenerator) ValidateKeyFormat(key string) error {
	if !strings.HasPrefix(key, KeyPrefix) {
		return fmt.Errorf("key must start with %q", KeyPrefix)
	}

	encoded := strings.TrimPrefix(key, KeyPrefix)
	if len(encoded) != KeyLength*2 {
		return fmt.Errorf("key has wrong length")
	}
	if _, err := hex.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid key encoding: %w", err)
	}

	return nil
}

// DisplayPrefix extracts the non-secret prefix of a key for display
func (kg *KeyGenerator) DisplayPrefix(key string) string {
	if !strings.HasPrefix(key, KeyPrefix) {
		return ""
	}

	encoded := strings.TrimPrefix(key, KeyPrefix)
	if len(encoded) >= displayPrefixLen {
		return KeyPrefix + encoded[:displayPrefixLen]
	}

	return KeyPrefix
}
