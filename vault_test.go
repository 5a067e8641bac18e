package cryptkit

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateVaultViaToolkitPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "correct horse battery staple")
	require.NoError(t, err)
	require.True(t, v.IsUnlocked())

	require.NoError(t, v.Put(ctx, "secrets", "db-password", []byte("hunter2"), nil))
	got, err := v.Get(ctx, "secrets", "db-password")
	require.NoError(t, err)
	require.Equal(t, []byte("hunter2"), got)

	require.NoError(t, v.Close(ctx))
}

func TestCreateVaultFallsBackToAmbientPassphrase(t *testing.T) {
	t.Setenv(EnvKeyEncryptionPassword, "ambient-secret")
	ctx := context.Background()
	kit, err := New(WithoutEnvFile())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "")
	require.NoError(t, err)
	require.NoError(t, v.Close(ctx))

	v2, err := kit.OpenVault(path)
	require.NoError(t, err)
	require.NoError(t, v2.Unlock(ctx, "ambient-secret"))
	require.NoError(t, v2.Close(ctx))
}

func TestVaultAuditChainRecordsCreateAndIsTamperEvident(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "passphrase")
	require.NoError(t, err)
	defer v.Close(ctx)

	records := v.AuditChain().Records()
	require.NotEmpty(t, records)

	broken, err := v.AuditChain().Verify()
	require.NoError(t, err)
	require.Equal(t, -1, broken)
}

func TestVaultAuditSinkMirrorsRecords(t *testing.T) {
	ctx := context.Background()
	var sink bytes.Buffer
	kit := newTestToolkit(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "passphrase", WithAuditSink(&sink))
	require.NoError(t, err)
	defer v.Close(ctx)

	require.NoError(t, v.Put(ctx, "ns", "k", []byte("v"), nil))
	require.Positive(t, sink.Len())
}

func TestVaultChangePassphraseThenReopen(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "old-passphrase")
	require.NoError(t, err)
	require.NoError(t, v.ChangePassphrase(ctx, "old-passphrase", "new-passphrase"))
	require.NoError(t, v.Close(ctx))

	v2, err := kit.OpenVault(path)
	require.NoError(t, err)
	require.Error(t, v2.Unlock(ctx, "old-passphrase"))
	require.NoError(t, v2.Unlock(ctx, "new-passphrase"))
	require.NoError(t, v2.Close(ctx))
}

func TestVaultSessionIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "passphrase")
	require.NoError(t, err)
	defer v.Close(ctx)

	token, err := v.IssueSession(ctx, 0)
	require.NoError(t, err)

	claims, err := v.VerifySession(token)
	require.NoError(t, err)
	require.NotEmpty(t, claims.SessionID)
}

func TestVaultSessionRestoreWithPassphraseUnlocksWithoutReprompting(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "passphrase")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, "ns", "k", []byte("v"), nil))

	token, err := v.IssueSession(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, v.Close(ctx))

	v2, err := kit.OpenVault(path)
	require.NoError(t, err)
	require.False(t, v2.IsUnlocked())

	restored, err := v2.RestoreSession(ctx, "passphrase")
	require.NoError(t, err)
	require.Equal(t, token, restored.Token)
	require.True(t, v2.IsUnlocked())
	require.NoError(t, v2.Close(ctx))
}

func TestVaultDeleteNonexistentKeyReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := kit.CreateVault(ctx, path, "passphrase")
	require.NoError(t, err)
	defer v.Close(ctx)

	err = v.Delete(ctx, "ns", "never-existed")
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindNotFound, kind)
}
