package crypt

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name keys are stored under.
const KeyringService = "mealplanner"

// KeyringSource loads and saves the encryption key in the OS-native
// credential store (macOS Keychain, Windows Credential Manager, Secret Service).
type KeyringSource struct {
	service string
	user    string
}

// NewKeyringSource returns a source for the given keyring user.
func NewKeyringSource(user string) (*KeyringSource, error) {
	if user == "" {
		return nil, fmt.Errorf("keyring user cannot be empty")
	}
	return &KeyringSource{service: KeyringService, user: user}, nil
}

// Load returns the raw hex key. A missing entry maps to ErrKeyMissing.
func (k *KeyringSource) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && raw == "") {
		return "", ErrKeyMissing
	}
	if err != nil {
		return "", fmt.Errorf("keyring read: %w", err)
	}
	return raw, nil
}

// Save stores key, overwriting any existing entry.
func (k *KeyringSource) Save(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return keyring.Set(k.service, k.user, key.Hex())
}

// ResolveKey returns raw when it is non-empty, otherwise the keyring entry
// for keyringUser. With neither available it returns "" so the startup
// guard reports ErrKeyMissing.
func ResolveKey(ctx context.Context, raw, keyringUser string) (string, error) {
	if raw != "" || keyringUser == "" {
		return raw, nil
	}
	src, err := NewKeyringSource(keyringUser)
	if err != nil {
		return "", err
	}
	v, err := src.Load(ctx)
	if errors.Is(err, ErrKeyMissing) {
		return "", nil
	}
	return v, err
}
