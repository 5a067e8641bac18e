package keychain

import (
	"context"
	"errors"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/zalando/go-keyring"
)

// OSKeychain is the production Keychain backed by the host OS secret
// store (macOS Keychain, Windows Credential Manager, the Secret Service
// on Linux via D-Bus).
type OSKeychain struct{}

// NewOSKeychain constructs the production keychain backend.
func NewOSKeychain() *OSKeychain { return &OSKeychain{} }

func (OSKeychain) Get(_ context.Context, service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", crypterrors.Wrap(crypterrors.NotFound, "keychain secret not found", ErrNotFound)
	}
	if err != nil {
		return "", crypterrors.Wrap(crypterrors.Io, "read from OS keychain", err)
	}
	return secret, nil
}

func (OSKeychain) Set(_ context.Context, service, account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return crypterrors.Wrap(crypterrors.Io, "write to OS keychain", err)
	}
	return nil
}

func (OSKeychain) Delete(_ context.Context, service, account string) error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "delete from OS keychain", err)
	}
	return nil
}
