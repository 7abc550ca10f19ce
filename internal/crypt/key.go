// Package crypt encrypts OAuth token secrets at rest with AES-256-GCM.
//
// Keys are 32 random bytes exchanged as 64 hex characters. Decryption fails
// closed: any mismatch between key, nonce and ciphertext yields
// ErrDecryptionFailed and never a partial plaintext.
package crypt

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// EnvKey is the environment variable that carries the encryption key.
const EnvKey = "OAUTH_ENCRYPTION_KEY"

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// KeyHexLen is the length of a hex-encoded key.
	KeyHexLen = KeySize * 2
)

var (
	ErrCrypto           = errors.New("crypto error")
	ErrKeyMissing       = fmt.Errorf("%w: %s is not set", ErrCrypto, EnvKey)
	ErrKeyInvalidFormat = fmt.Errorf("%w: %s must be %d hex characters", ErrCrypto, EnvKey, KeyHexLen)
	ErrDecryptionFailed = fmt.Errorf("%w: decryption failed", ErrCrypto)
)

// Key is a 256-bit AES key. Its String and LogValue forms are redacted.
type Key [KeySize]byte

// GenerateKey returns a fresh key from crypto/rand.
func GenerateKey() Key {
	var k Key
	// crypto/rand.Read never returns an error and always fills the buffer.
	_, _ = rand.Read(k[:])
	return k
}

// ParseKey decodes a 64-character hex key. Surrounding whitespace is ignored.
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.TrimSpace(s)
	if s == "" {
		return k, ErrKeyMissing
	}
	if len(s) != KeyHexLen {
		return k, ErrKeyInvalidFormat
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return Key{}, ErrKeyInvalidFormat
	}
	return k, nil
}

// Hex returns the key as 64 lowercase hex characters.
func (k Key) Hex() string { return hex.EncodeToString(k[:]) }

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool { return k == Key{} }

func (k Key) String() string { return "[redacted]" }

// LogValue keeps keys out of structured logs.
func (k Key) LogValue() slog.Value { return slog.StringValue("[redacted]") }
