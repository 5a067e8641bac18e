package keychain

import (
	"context"
	"sync"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// FakeKeychain is an in-memory Keychain for tests. Safe for concurrent use.
type FakeKeychain struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewFakeKeychain constructs an empty in-memory keychain.
func NewFakeKeychain() *FakeKeychain {
	return &FakeKeychain{secrets: make(map[string]string)}
}

func key(service, account string) string { return service + "\x00" + account }

func (f *FakeKeychain) Get(_ context.Context, service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	secret, ok := f.secrets[key(service, account)]
	if !ok {
		return "", crypterrors.Wrap(crypterrors.NotFound, "keychain secret not found", ErrNotFound)
	}
	return secret, nil
}

func (f *FakeKeychain) Set(_ context.Context, service, account, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[key(service, account)] = secret
	return nil
}

func (f *FakeKeychain) Delete(_ context.Context, service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.secrets, key(service, account))
	return nil
}
