package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	cipherKeySize   = 32
	cipherNonceSize = 24
)

// ErrCiphertextInvalid is returned when a stored token cannot be opened with the configured key
var ErrCiphertextInvalid = errors.New("token ciphertext is invalid")

// TokenCipher seals provider tokens at rest with NaCl secretbox.
// Output is base64url(nonce || box).
type TokenCipher struct {
	key [cipherKeySize]byte
}

// NewTokenCipher creates a cipher from a standard base64 encoded 32 byte key
func NewTokenCipher(encodedKey string) (*TokenCipher, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token encryption key: %w", err)
	}
	if len(raw) != cipherKeySize {
		return nil, fmt.Errorf("token encryption key must be %d bytes, got %d", cipherKeySize, len(raw))
	}

	c := &TokenCipher{}
	copy(c.key[:], raw)
	return c, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	var nonce [cipherNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil || len(sealed) < cipherNonceSize+secretbox.Overhead {
		return "", ErrCiphertextInvalid
	}

	var nonce [cipherNonceSize]byte
	copy(nonce[:], sealed[:cipherNonceSize])

	plain, ok := secretbox.Open(nil, sealed[cipherNonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrCiphertextInvalid
	}
	return string(plain), nil
}

// EncryptOptional encrypts s when it is non-nil
func (c *TokenCipher) EncryptOptional(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	enc, err := c.Encrypt(*s)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}
