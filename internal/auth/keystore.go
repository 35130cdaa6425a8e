// Package auth implements the credential store and token service that front
// the threat-model API. API keys are supplied out-of-band via configuration;
// only bcrypt hashes are retained in memory.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// keyIDLen is the number of hex characters of the SHA-256 fingerprint used
// as the key identifier. The identifier is safe to log and to embed in
// tokens; the raw key never is.
const keyIDLen = 16

// Keystore validates presented API keys against the configured set.
// It is immutable after construction and safe for concurrent use.
type Keystore struct {
	enabled bool
	hashes  map[string][]byte // key ID -> bcrypt hash
}

// NewKeystore builds a Keystore from the configured raw keys. Each key is
// bcrypt-hashed and indexed by its fingerprint; the raw keys are not kept.
func NewKeystore(keys []string, enabled bool) (*Keystore, error) {
	hashes := make(map[string][]byte, len(keys))
	for _, k := range keys {
		h, err := bcrypt.GenerateFromPassword([]byte(k), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash api key: %w", err)
		}
		hashes[KeyID(k)] = h
	}
	return &Keystore{enabled: enabled, hashes: hashes}, nil
}

// KeyID returns the stable identifier for a raw API key.
func KeyID(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])[:keyIDLen]
}

// Lookup validates rawKey and returns its key ID. The error is uniform for
// empty, malformed, and unknown keys. The bcrypt comparison is constant-time.
func (ks *Keystore) Lookup(rawKey string) (string, error) {
	if rawKey == "" {
		return "", ErrInvalidCredential
	}

	id := KeyID(rawKey)

	// With authentication disabled any non-empty key maps to an identity.
	if !ks.enabled {
		return id, nil
	}

	hash, ok := ks.hashes[id]
	if !ok {
		return "", ErrInvalidCredential
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(rawKey)) != nil {
		return "", ErrInvalidCredential
	}
	return id, nil
}

// Has reports whether the key identified by id is still valid. Used at token
// verification so that removing a key from configuration revokes its tokens.
func (ks *Keystore) Has(id string) bool {
	if !ks.enabled {
		return true
	}
	_, ok := ks.hashes[id]
	return ok
}

// Enabled reports whether API-key authentication is enforced.
func (ks *Keystore) Enabled() bool { return ks.enabled }
