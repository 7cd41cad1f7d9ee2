package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStorage provides OS-native secure credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// Each key is stored as a separate secret of the service.
type KeyringStorage struct {
	service string
}

// Compile-time check to ensure KeyringStorage implements Storage
var _ Storage = (*KeyringStorage)(nil)

// NewKeyringStorage creates a KeyringStorage for the given service identifier.
func NewKeyringStorage(service string) (*KeyringStorage, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringStorage{
		service: service,
	}, nil
}

// Get returns the secret stored for key.
func (k *KeyringStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set persists the secret, overwriting any existing value.
func (k *KeyringStorage) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, key, value)
}

// Remove deletes the secret for key.
func (k *KeyringStorage) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// Clear deletes every secret of the service.
func (k *KeyringStorage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.DeleteAll(k.service)
}
