package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(PreimageSize)
	require.NoError(t, err)
	b, err := RandomBytes(PreimageSize)
	require.NoError(t, err)
	assert.Len(t, a, PreimageSize)
	assert.False(t, bytes.Equal(a, b), "two random draws should differ")
}

func TestHash(t *testing.T) {
	// sha256("")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	got := Hash(nil)
	assert.Equal(t, want, hex.EncodeToString(got))
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltSize)
	k1 := DeriveKey("correct horse", salt)
	k2 := DeriveKey("correct horse", salt)
	k3 := DeriveKey("battery staple", salt)
	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestVaultLocked(t *testing.T) {
	v := NewVault()
	_, _, err := v.Encrypt([]byte("hi"))
	assert.True(t, errors.Is(err, ErrLocked))
	_, err = v.Decrypt(make([]byte, IVSize), []byte("x"))
	assert.True(t, errors.Is(err, ErrLocked))
}

func TestVaultRoundTrip(t *testing.T) {
	salt, err := RandomBytes(SaltSize)
	require.NoError(t, err)

	v := NewVault()
	require.NoError(t, v.Unlock("secret", salt))
	require.True(t, v.Unlocked())

	iv, ct, err := v.Encrypt([]byte("hello over lightning"))
	require.NoError(t, err)
	assert.Len(t, iv, IVSize)

	pt, err := v.Decrypt(iv, ct)
	require.NoError(t, err)
	assert.Equal(t, "hello over lightning", string(pt))

	// A vault unlocked with another passphrase cannot open it.
	other := NewVault()
	require.NoError(t, other.Unlock("wrong", salt))
	_, err = other.Decrypt(iv, ct)
	assert.Error(t, err)

	v.Lock()
	assert.False(t, v.Unlocked())
	_, err = v.Decrypt(iv, ct)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestVaultUnlockEmptySalt(t *testing.T) {
	assert.Error(t, NewVault().Unlock("x", nil))
}
