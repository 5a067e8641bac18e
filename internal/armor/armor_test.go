package armor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cryptkit/vault/internal/audit"
	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/keychain"
	"github.com/cryptkit/vault/internal/pqsign"
	"github.com/stretchr/testify/require"
)

func writeTestDB(t *testing.T, dir string, contents []byte) string {
	path := filepath.Join(dir, "vault.db")
	require.NoError(t, os.WriteFile(path, contents, 0o600))
	return path
}

func TestSealUnsealRoundTrip(t *testing.T) {
	ctx := context.Background()
	kc := keychain.NewFakeKeychain()
	dir := t.TempDir()

	plaintext := []byte("row-one row-two row-three super secret plaintext")
	dbPath := writeTestDB(t, dir, plaintext)

	keyID, err := GenerateKeyPair(ctx, kc, "test")
	require.NoError(t, err)

	require.NoError(t, Seal(ctx, kc, dbPath, keyID))
	_, err = os.Stat(dbPath)
	require.True(t, os.IsNotExist(err))

	armorPath := ArmorPath(dbPath)
	armored, err := os.ReadFile(armorPath)
	require.NoError(t, err)
	require.False(t, bytes.Contains(armored, plaintext))

	require.NoError(t, Unseal(ctx, kc, armorPath))
	_, err = os.Stat(armorPath)
	require.True(t, os.IsNotExist(err))

	restored, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	require.Equal(t, plaintext, restored)
}

func TestUnsealRejectsUnknownMagic(t *testing.T) {
	ctx := context.Background()
	kc := keychain.NewFakeKeychain()
	dir := t.TempDir()

	armorPath := filepath.Join(dir, "vault.vault")
	require.NoError(t, os.WriteFile(armorPath, []byte("not an armored frame at all"), 0o600))

	err := Unseal(ctx, kc, armorPath)
	require.Error(t, err)
	var cerr *crypterrors.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, crypterrors.InvalidInput, cerr.Kind)
}

func TestUnsealRejectsWrongKey(t *testing.T) {
	ctx := context.Background()
	kc := keychain.NewFakeKeychain()
	dir := t.TempDir()

	dbPath := writeTestDB(t, dir, []byte("secret payload"))
	keyID, err := GenerateKeyPair(ctx, kc, "test")
	require.NoError(t, err)
	require.NoError(t, Seal(ctx, kc, dbPath, keyID))

	otherKeyID, err := GenerateKeyPair(ctx, kc, "test")
	require.NoError(t, err)

	armorPath := ArmorPath(dbPath)
	data, err := os.ReadFile(armorPath)
	require.NoError(t, err)
	f, err := decodeFrame(data)
	require.NoError(t, err)
	f.KeyID = otherKeyID
	require.NoError(t, os.WriteFile(armorPath, encodeFrame(f), 0o600))

	err = Unseal(ctx, kc, armorPath)
	require.Error(t, err)
	var cerr *crypterrors.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, crypterrors.AuthenticationFailed, cerr.Kind)
}

func TestRotationPreservesPlaintextAndSwapsKeys(t *testing.T) {
	ctx := context.Background()
	kc := keychain.NewFakeKeychain()
	dir := t.TempDir()

	plaintext := []byte("rotation must not lose this value")
	dbPath := writeTestDB(t, dir, plaintext)

	k1, err := GenerateKeyPair(ctx, kc, "test")
	require.NoError(t, err)
	require.NoError(t, Seal(ctx, kc, dbPath, k1))

	armorPath := ArmorPath(dbPath)
	before, err := os.ReadFile(armorPath)
	require.NoError(t, err)

	k2, err := Rotate(ctx, kc, "test", []string{armorPath})
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)

	_, err = kc.Get(ctx, keychainService, k1)
	require.Error(t, err)

	after, err := os.ReadFile(armorPath)
	require.NoError(t, err)
	require.NotEqual(t, before, after)

	require.NoError(t, Unseal(ctx, kc, armorPath))
	restored, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	require.Equal(t, plaintext, restored)
}

func TestRotationRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	kc := keychain.NewFakeKeychain()
	dir := t.TempDir()

	dbPath1 := writeTestDB(t, dir, []byte("vault one"))
	k1, err := GenerateKeyPair(ctx, kc, "test")
	require.NoError(t, err)
	require.NoError(t, Seal(ctx, kc, dbPath1, k1))

	dir2 := t.TempDir()
	badArmorPath := filepath.Join(dir2, "vault.vault")
	require.NoError(t, os.WriteFile(badArmorPath, []byte("corrupt, not a real frame"), 0o600))

	_, err = Rotate(ctx, kc, "test", []string{ArmorPath(dbPath1), badArmorPath})
	require.Error(t, err)

	// the first vault file must still be readable under its original key
	// after the rollback.
	require.NoError(t, Unseal(ctx, kc, ArmorPath(dbPath1)))
	restored, err := os.ReadFile(dbPath1)
	require.NoError(t, err)
	require.Equal(t, []byte("vault one"), restored)
}

func TestSealAndUnsealAppendAuditRecords(t *testing.T) {
	chain := audit.NewChain("session-armor", nil)
	ctx := audit.WithChain(context.Background(), chain)
	kc := keychain.NewFakeKeychain()
	dir := t.TempDir()

	dbPath := writeTestDB(t, dir, []byte("audited contents"))
	keyID, err := GenerateKeyPair(ctx, kc, "test")
	require.NoError(t, err)
	require.NoError(t, Seal(ctx, kc, dbPath, keyID))
	require.NoError(t, Unseal(ctx, kc, ArmorPath(dbPath)))

	records := chain.Records()
	require.Len(t, records, 3)
	require.Equal(t, audit.EventKeyGeneration, records[0].EventType)
	require.Equal(t, audit.EventArmor, records[1].EventType)
	require.Equal(t, audit.EventUnarmor, records[2].EventType)

	broken, err := chain.Verify()
	require.NoError(t, err)
	require.Equal(t, -1, broken)
}

func TestSealWithSignatureVerifies(t *testing.T) {
	ctx := context.Background()
	kc := keychain.NewFakeKeychain()
	dir := t.TempDir()

	dbPath := writeTestDB(t, dir, []byte("signed armor contents"))
	keyID, err := GenerateKeyPair(ctx, kc, "test")
	require.NoError(t, err)

	signer, err := pqsign.Generate(pqsign.SchemeMLDSA65)
	require.NoError(t, err)

	require.NoError(t, SealWithSignature(ctx, kc, dbPath, keyID, signer))
	armorPath := ArmorPath(dbPath)

	require.NoError(t, VerifySignature(armorPath, pqsign.SchemeMLDSA65, signer.PublicKeyBytes()))

	other, err := pqsign.Generate(pqsign.SchemeMLDSA65)
	require.NoError(t, err)
	err = VerifySignature(armorPath, pqsign.SchemeMLDSA65, other.PublicKeyBytes())
	require.Error(t, err)
}
