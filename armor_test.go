package cryptkit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cryptkit/vault/internal/armor"
	"github.com/stretchr/testify/require"
)

func TestSealAndUnsealVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "vault.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("toolkit-sealed contents"), 0o600))

	keyID, err := kit.GenerateArmorKey(ctx, "prod")
	require.NoError(t, err)

	require.NoError(t, kit.SealVault(ctx, dbPath, keyID))
	_, err = os.Stat(dbPath)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, kit.UnsealVault(ctx, armor.ArmorPath(dbPath)))
	restored, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	require.Equal(t, []byte("toolkit-sealed contents"), restored)
}

func TestRotateArmorKeysThroughToolkit(t *testing.T) {
	ctx := context.Background()
	kit := newTestToolkit(t)
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "vault.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("rotation target"), 0o600))

	keyID, err := kit.GenerateArmorKey(ctx, "prod")
	require.NoError(t, err)
	require.NoError(t, kit.SealVault(ctx, dbPath, keyID))

	armorPath := armor.ArmorPath(dbPath)
	newKeyID, err := kit.RotateArmorKeys(ctx, "prod", []string{armorPath})
	require.NoError(t, err)
	require.NotEqual(t, keyID, newKeyID)

	require.NoError(t, kit.UnsealVault(ctx, armorPath))
	restored, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	require.Equal(t, []byte("rotation target"), restored)
}
