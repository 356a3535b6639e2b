// Package security seals small values, such as guest session ids, for storage on
// the client.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidToken is returned for values that fail to decode or authenticate.
var ErrInvalidToken = errors.New("invalid sealed value")

// Cipher seals values with AES-256-GCM. The purpose string is bound as associated
// data, so a value sealed for one purpose does not open for another.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit key from secret. An empty secret is rejected.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("encryption key not configured")
	}
	key := sha256.Sum256([]byte(secret))
	return newCipher(key[:])
}

// NewRandomCipher uses a fresh random key. Values sealed with it do not survive a
// restart.
func NewRandomCipher() (*Cipher, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return newCipher(key)
}

func newCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Seal encrypts plaintext and returns it URL-safe base64 encoded.
func (c *Cipher) Seal(purpose, plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(purpose))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (c *Cipher) Open(purpose, encoded string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("%w: too short", ErrInvalidToken)
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, []byte(purpose))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(plaintext), nil
}
