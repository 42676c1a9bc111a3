package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Valid 32-byte key in hex (64 chars)
const testTokenKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestTokenCipher_NewInvalidKey(t *testing.T) {
	_, err := NewTokenCipher("shortkey")
	assert.Error(t, err)

	_, err = NewTokenCipher("0123456789abcdef")
	assert.Error(t, err, "16-byte key is too short")
}

func TestTokenCipher_EncryptDecrypt(t *testing.T) {
	svc, err := NewTokenCipher(testTokenKey)
	require.NoError(t, err)

	plaintext := "eyJhbGciOiJIUzI1NiJ9.backend.token"
	ciphertext, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "backend")

	decrypted, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestTokenCipher_DifferentNonces(t *testing.T) {
	svc, err := NewTokenCipher(testTokenKey)
	require.NoError(t, err)

	c1, err := svc.Encrypt("token")
	require.NoError(t, err)
	c2, err := svc.Encrypt("token")
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2, "same plaintext should produce different ciphertext due to random nonce")
}

func TestTokenCipher_TamperedCiphertext(t *testing.T) {
	svc, err := NewTokenCipher(testTokenKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("token")
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	last := len(tampered) - 1
	if tampered[last] == '0' {
		tampered[last] = '1'
	} else {
		tampered[last] = '0'
	}

	_, err = svc.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestTokenCipher_InvalidInput(t *testing.T) {
	svc, err := NewTokenCipher(testTokenKey)
	require.NoError(t, err)

	_, err = svc.Decrypt("not-hex")
	assert.Error(t, err)

	_, err = svc.Decrypt("abcd")
	assert.Error(t, err, "too short")
}
