package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrLocked is returned by Encrypt and Decrypt before the vault is unlocked.
	ErrLocked = errors.New("vault is locked")
	// ErrBadPassphrase means the derived key does not open existing data.
	ErrBadPassphrase = errors.New("wrong passphrase")
	ErrUnlocked      = errors.New("vault is already unlocked")
)

// Vault holds the derived storage key in memory and seals message bodies.
// It is safe for concurrent use.
type Vault struct {
	mu   sync.RWMutex
	aead cipher.AEAD
}

// NewVault returns a locked vault.
func NewVault() *Vault {
	return &Vault{}
}

// Unlock derives the storage key from passphrase and salt and keeps it for
// subsequent Encrypt/Decrypt calls.
func (v *Vault) Unlock(passphrase string, salt []byte) error {
	if len(salt) == 0 {
		return errors.New("empty salt")
	}
	aead, err := newAEAD(DeriveKey(passphrase, salt))
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.aead = aead
	v.mu.Unlock()
	return nil
}

// Lock drops the key.
func (v *Vault) Lock() {
	v.mu.Lock()
	v.aead = nil
	v.mu.Unlock()
}

// Unlocked reports whether a key is loaded.
func (v *Vault) Unlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.aead != nil
}

// Encrypt seals plaintext under a fresh random IV.
func (v *Vault) Encrypt(plaintext []byte) (iv, ciphertext []byte, err error) {
	v.mu.RLock()
	aead := v.aead
	v.mu.RUnlock()
	if aead == nil {
		return nil, nil, ErrLocked
	}
	iv, err = RandomBytes(IVSize)
	if err != nil {
		return nil, nil, err
	}
	return iv, aead.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt opens ciphertext sealed by Encrypt.
func (v *Vault) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	v.mu.RLock()
	aead := v.aead
	v.mu.RUnlock()
	if aead == nil {
		return nil, ErrLocked
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid iv length %d", len(iv))
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return aead, nil
}
