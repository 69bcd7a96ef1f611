// Package secret seals credentials before they reach the database.
package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "enc:v1:"

var (
	// ErrKeyRequired is returned when a sealed value is read without a key.
	ErrKeyRequired = errors.New("sealed value requires an encryption key")
	// ErrInvalidKey is returned for keys that are not 32 bytes of hex or base64.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes, hex or base64 encoded")
)

// Box seals strings with XChaCha20-Poly1305. A Box built from an empty key
// stores values as plain text, which keeps local setups key-free.
type Box struct {
	aead cipher.AEAD
}

// NewBox parses key and returns a ready Box.
func NewBox(key string) (*Box, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return &Box{}, nil
	}

	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Enabled reports whether values are actually encrypted.
func (b *Box) Enabled() bool {
	return b != nil && b.aead != nil
}

// Seal encrypts plain. Without a key it returns plain unchanged.
func (b *Box) Seal(plain string) (string, error) {
	if !b.Enabled() {
		return plain, nil
	}

	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plain)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is so
// rows written before a key was configured keep working.
func (b *Box) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !b.Enabled() {
		return "", ErrKeyRequired
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	if len(data) < b.aead.NonceSize() {
		return "", errors.New("sealed value is truncated")
	}

	nonce, ciphertext := data[:b.aead.NonceSize()], data[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}

func decodeKey(key string) ([]byte, error) {
	if raw, err := hex.DecodeString(key); err == nil && len(raw) == chacha20poly1305.KeySize {
		return raw, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(key); err == nil && len(raw) == chacha20poly1305.KeySize {
			return raw, nil
		}
	}
	return nil, ErrInvalidKey
}
