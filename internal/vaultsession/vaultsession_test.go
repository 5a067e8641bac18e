package vaultsession

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	secret := DeriveSecret([]byte("0123456789abcdef0123456789abcdef"), "vault-1")

	token, sessionID, err := Issue(secret, "vault-1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := Verify(token, secret, "vault-1")
	require.NoError(t, err)
	require.Equal(t, sessionID, claims.SessionID)
	require.Equal(t, "vault-1", claims.VaultID)
	require.Equal(t, "vault_user", claims.Subject)
}

func TestVerifyRejectsWrongVaultID(t *testing.T) {
	secret := DeriveSecret([]byte("key-material-for-vault-one-32by"), "vault-1")
	token, _, err := Issue(secret, "vault-1", time.Minute)
	require.NoError(t, err)

	_, err = Verify(token, secret, "vault-2")
	require.Error(t, err)
	var cerr *crypterrors.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, crypterrors.AuthenticationFailed, cerr.Kind)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret := DeriveSecret([]byte("key-material-for-vault-one-32by"), "vault-1")
	token, _, err := Issue(secret, "vault-1", -time.Second)
	require.NoError(t, err)

	_, err = Verify(token, secret, "vault-1")
	require.Error(t, err)
}

func TestDeriveSecretDiffersAcrossVaults(t *testing.T) {
	key := []byte("shared-32-byte-encryption-key!!!")
	s1 := DeriveSecret(key, "vault-a")
	s2 := DeriveSecret(key, "vault-b")
	require.False(t, bytes.Equal(s1, s2))
}

type fakeSessionStore struct {
	rows map[string][]byte
}

func newFakeSessionStore() *fakeSessionStore { return &fakeSessionStore{rows: map[string][]byte{}} }

func (f *fakeSessionStore) PutSession(_ context.Context, key, value []byte) error {
	f.rows[string(key)] = value
	return nil
}
func (f *fakeSessionStore) GetSession(_ context.Context, key []byte) ([]byte, error) {
	v, ok := f.rows[string(key)]
	if !ok {
		return nil, crypterrors.New(crypterrors.NotFound, "not found")
	}
	return v, nil
}
func (f *fakeSessionStore) DeleteSession(_ context.Context, key []byte) error {
	delete(f.rows, string(key))
	return nil
}

func TestPersistRestoreForget(t *testing.T) {
	ctx := context.Background()
	store := newFakeSessionStore()

	session := PersistedSession{Token: "jwt-token", Salt: []byte("salt"), CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, Persist(ctx, store, "/path/to/vault.db", session))

	restored, err := Restore(ctx, store, "/path/to/vault.db")
	require.NoError(t, err)
	require.Equal(t, "jwt-token", restored.Token)

	require.NoError(t, Forget(ctx, store, "/path/to/vault.db"))
	_, err = Restore(ctx, store, "/path/to/vault.db")
	require.Error(t, err)
}
