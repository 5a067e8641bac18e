package keychain

import (
	"context"
	"errors"
	"testing"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/stretchr/testify/require"
)

func TestFakeKeychainSetGetDelete(t *testing.T) {
	ctx := context.Background()
	kc := NewFakeKeychain()

	_, err := kc.Get(ctx, "cryptkit-vault", "vault-1")
	require.Error(t, err)
	var cerr *crypterrors.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, crypterrors.NotFound, cerr.Kind)

	require.NoError(t, kc.Set(ctx, "cryptkit-vault", "vault-1", "secret-material"))
	got, err := kc.Get(ctx, "cryptkit-vault", "vault-1")
	require.NoError(t, err)
	require.Equal(t, "secret-material", got)

	require.NoError(t, kc.Delete(ctx, "cryptkit-vault", "vault-1"))
	_, err = kc.Get(ctx, "cryptkit-vault", "vault-1")
	require.Error(t, err)
}

func TestFakeKeychainIsolatesServiceAndAccount(t *testing.T) {
	ctx := context.Background()
	kc := NewFakeKeychain()

	require.NoError(t, kc.Set(ctx, "svc-a", "acct", "one"))
	require.NoError(t, kc.Set(ctx, "svc-b", "acct", "two"))

	a, err := kc.Get(ctx, "svc-a", "acct")
	require.NoError(t, err)
	require.Equal(t, "one", a)

	b, err := kc.Get(ctx, "svc-b", "acct")
	require.NoError(t, err)
	require.Equal(t, "two", b)
}
