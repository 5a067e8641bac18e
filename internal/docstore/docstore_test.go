package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "prod", "api/token", []byte("ciphertext-1"), map[string]any{"owner": "alice"}))

	row, err := s.Get(ctx, "prod", "api/token")
	require.NoError(t, err)
	require.Equal(t, "api/token", row.Key)
	require.Equal(t, []byte("ciphertext-1"), row.Value)
	require.Equal(t, "prod", row.Namespace)
}

func TestPutPreservesCreatedAtAcrossUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "", "k", []byte("v1"), nil))
	first, err := s.Get(ctx, "", "k")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "", "k", []byte("v2"), nil))
	second, err := s.Get(ctx, "", "k")
	require.NoError(t, err)

	require.Equal(t, []byte("v2"), second.Value)
	require.True(t, first.CreatedAt.Equal(second.CreatedAt))
	require.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestStrictNamespaceMatching(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "", "shared-key", []byte("unnamespaced"), nil))
	require.NoError(t, s.Put(ctx, "prod", "shared-key", []byte("namespaced"), nil))

	_, err := s.Get(ctx, "staging", "shared-key")
	require.Error(t, err)
	var cerr *crypterrors.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, crypterrors.NotFound, cerr.Kind)

	row, err := s.Get(ctx, "", "shared-key")
	require.NoError(t, err)
	require.Equal(t, []byte("unnamespaced"), row.Value)

	row, err = s.Get(ctx, "prod", "shared-key")
	require.NoError(t, err)
	require.Equal(t, []byte("namespaced"), row.Value)
}

func TestDeleteIsStrictAndVerifiesExistence(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "prod", "k", []byte("v"), nil))

	err := s.Delete(ctx, "staging", "k") // different namespace, no match
	require.Error(t, err)
	var cerr *crypterrors.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, crypterrors.NotFound, cerr.Kind)
	_, err = s.Get(ctx, "prod", "k")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "prod", "k"))
	_, err = s.Get(ctx, "prod", "k")
	require.Error(t, err)

	err = s.Delete(ctx, "prod", "k") // deleting again surfaces NotFound
	require.Error(t, err)
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, crypterrors.NotFound, cerr.Kind)
}

func TestFindFiltersWithinNamespace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "prod", "a", []byte("1"), nil))
	require.NoError(t, s.Put(ctx, "prod", "b", []byte("2"), nil))
	require.NoError(t, s.Put(ctx, "staging", "c", []byte("3"), nil))

	rows, err := s.Find(ctx, "prod", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = s.Find(ctx, "prod", func(r Row) bool { return r.Key == "a" })
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestListNamespacesExcludesReservedBuckets(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "prod", "a", []byte("1"), nil))
	require.NoError(t, s.Put(ctx, "staging", "b", []byte("2"), nil))
	require.NoError(t, s.Put(ctx, "", "c", []byte("3"), nil))
	require.NoError(t, s.PutMeta(ctx, "salt", []byte("salt-bytes")))

	namespaces, err := s.ListNamespaces(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"prod", "staging", ""}, namespaces)
}

func TestRewriteVaultTransformsEveryRowAndMeta(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "prod", "a", []byte("plain-a"), nil))
	require.NoError(t, s.Put(ctx, "staging", "b", []byte("plain-b"), nil))
	require.NoError(t, s.Put(ctx, "", "c", []byte("plain-c"), nil))
	require.NoError(t, s.PutMeta(ctx, "salt", []byte("old-salt")))

	seen := map[string]bool{}
	err := s.RewriteVault(ctx, "salt", []byte("new-salt"), func(namespace, key string, value []byte) ([]byte, error) {
		seen[namespace+"/"+key] = true
		return append([]byte("rewritten:"), value...), nil
	})
	require.NoError(t, err)
	require.True(t, seen["prod/a"])
	require.True(t, seen["staging/b"])
	require.True(t, seen["/c"])

	rowA, err := s.Get(ctx, "prod", "a")
	require.NoError(t, err)
	require.Equal(t, []byte("rewritten:plain-a"), rowA.Value)

	gotSalt, err := s.GetMeta(ctx, "salt")
	require.NoError(t, err)
	require.Equal(t, []byte("new-salt"), gotSalt)
}

func TestRewriteVaultFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "prod", "a", []byte("plain-a"), nil))
	require.NoError(t, s.PutMeta(ctx, "salt", []byte("old-salt")))

	boom := errors.New("transform failed")
	err := s.RewriteVault(ctx, "salt", []byte("new-salt"), func(namespace, key string, value []byte) ([]byte, error) {
		return nil, boom
	})
	require.Error(t, err)

	row, err := s.Get(ctx, "prod", "a")
	require.NoError(t, err)
	require.Equal(t, []byte("plain-a"), row.Value)

	gotSalt, err := s.GetMeta(ctx, "salt")
	require.NoError(t, err)
	require.Equal(t, []byte("old-salt"), gotSalt)
}

func TestMetaAndSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.PutMeta(ctx, "salt", []byte("abc")))
	got, err := s.GetMeta(ctx, "salt")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	sessionKey := []byte("sha256-of-path")
	require.NoError(t, s.PutSession(ctx, sessionKey, []byte("jwt-blob")))
	gotSession, err := s.GetSession(ctx, sessionKey)
	require.NoError(t, err)
	require.Equal(t, []byte("jwt-blob"), gotSession)

	require.NoError(t, s.DeleteSession(ctx, sessionKey))
	_, err = s.GetSession(ctx, sessionKey)
	require.Error(t, err)
}
