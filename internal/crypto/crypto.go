// Package crypto provides the primitives the messaging engine relies on:
// random bytes, SHA-256, passphrase key derivation and the AES-GCM vault that
// encrypts message bodies at rest.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyIterations is the PBKDF2 iteration count for the storage key.
	KeyIterations = 100_000
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the length of the persisted key salt.
	SaltSize = 16
	// IVSize is the AES-GCM nonce length.
	IVSize = 12
	// PreimageSize is the length of a keysend preimage.
	PreimageSize = 32
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random bytes: %w", err)
	}
	return b, nil
}

// Hash returns the SHA-256 digest of b.
func Hash(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// DeriveKey stretches a passphrase into an AES-256 key with PBKDF2-SHA256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, KeyIterations, KeySize, sha256.New)
}
