// Package crypto seals configuration secrets (mail password, API key) so
// they can sit in a config file or environment as "enc::<base64>".
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Prefix marks a sealed value.
const Prefix = "enc::"

const hkdfInfo = "sysadvisor config secrets v1"

var (
	// ErrNoKey is returned when a sealed value is met but no secret was given.
	ErrNoKey = errors.New("crypto: SYSADVISOR_SECRET not set")
	// ErrMalformed is returned for values that cannot be opened.
	ErrMalformed = errors.New("crypto: malformed sealed value")
)

// Sealer encrypts and decrypts with AES-256-GCM under a key derived from a
// passphrase.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer derives the AES-256 key from secret with HKDF-SHA256. An empty
// secret yields a Sealer that can only pass through unsealed values.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return &Sealer{}, nil
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{gcm: gcm}, nil
}

// IsSealed reports whether v carries the sealed prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, Prefix)
}

// Seal returns "enc::<base64>". Empty and already sealed values are
// returned unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}
	if s.gcm == nil {
		return "", ErrNoKey
	}

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Values without the prefix are plaintext and are
// returned as-is.
func (s *Sealer) Open(v string) (string, error) {
	if !IsSealed(v) {
		return v, nil
	}
	if s.gcm == nil {
		return "", ErrNoKey
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("%w: ciphertext too short", ErrMalformed)
	}
	plaintext, err := s.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return string(plaintext), nil
}

// Mask hides all but the last 4 characters, e.g. "••••••••abc1".
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("•", 8)
	}
	return strings.Repeat("•", 8) + secret[len(secret)-4:]
}
