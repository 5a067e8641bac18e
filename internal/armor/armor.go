package armor

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"strings"

	"github.com/cryptkit/vault/internal/audit"
	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/envelope"
	"github.com/cryptkit/vault/internal/keychain"
	"github.com/cryptkit/vault/internal/pqkem"
)

// dbExt and armorExt are the file extensions this package swaps between:
// "vault.db" unarmored, "vault.vault" armored.
const (
	dbExt    = ".db"
	armorExt = ".vault"
)

// ArmorPath derives the armored-file path for an unarmored database path.
func ArmorPath(dbPath string) string {
	return strings.TrimSuffix(dbPath, dbExt) + armorExt
}

// DBPath derives the unarmored database path for an armored file path.
func DBPath(armorPath string) string {
	return strings.TrimSuffix(armorPath, armorExt) + dbExt
}

// Seal reads the unlocked vault's database file at dbPath, encrypts it
// under a fresh ML-KEM-768 session key encapsulated to keyID's public key,
// writes the armored artifact atomically, and shreds the plaintext. On
// return, dbPath no longer exists and ArmorPath(dbPath) does.
func Seal(ctx context.Context, kc keychain.Keychain, dbPath, keyID string) error {
	publicKey, err := LoadPublicKey(ctx, kc, keyID)
	if err != nil {
		return err
	}

	plaintext, err := os.ReadFile(dbPath)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "read database file to seal", err)
	}

	sharedSecret, kemCiphertext, err := pqkem.EncapsulateTo(publicKey)
	if err != nil {
		return err
	}
	defer envelope.Zeroize(sharedSecret)

	nonce := make([]byte, envelope.AESNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return crypterrors.Wrap(crypterrors.Internal, "generate armor nonce", err)
	}

	env, err := envelope.EncryptAESGCM(sharedSecret, plaintext, nonce, nil)
	if err != nil {
		return err
	}

	f := frame{KeyID: keyID, KEMCiphertext: kemCiphertext, Nonce: env.Nonce, Payload: env.Ciphertext}
	if err := writeAtomic(ArmorPath(dbPath), encodeFrame(f), 0o600); err != nil {
		return err
	}

	if err := shredFile(dbPath); err != nil {
		return err
	}
	audit.Append(ctx, audit.EventArmor, map[string]interface{}{"db_path": dbPath, "key_id": keyID})
	return nil
}

// Unseal reverses Seal: it reads the armored file at armorPath, decrypts
// its payload using the secret key named by the frame's key id, writes the
// plaintext database atomically to DBPath(armorPath), and deletes the
// armored file.
func Unseal(ctx context.Context, kc keychain.Keychain, armorPath string) error {
	data, err := os.ReadFile(armorPath)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "read armored file", err)
	}

	f, err := decodeFrame(data)
	if err != nil {
		return err
	}

	kp, err := LoadKeyPair(ctx, kc, f.KeyID)
	if err != nil {
		return err
	}

	sharedSecret, err := kp.Decapsulate(f.KEMCiphertext)
	if err != nil {
		return err
	}
	defer envelope.Zeroize(sharedSecret)

	env := &envelope.Envelope{Algorithm: envelope.AlgAESGCM, Nonce: f.Nonce, Ciphertext: f.Payload}
	plaintext, err := envelope.DecryptAESGCM(sharedSecret, env, nil)
	if err != nil {
		return err
	}

	if err := writeAtomic(DBPath(armorPath), plaintext, 0o600); err != nil {
		return err
	}

	if err := os.Remove(armorPath); err != nil {
		return crypterrors.Wrap(crypterrors.Io, "remove armored file after unseal", err)
	}
	audit.Append(ctx, audit.EventUnarmor, map[string]interface{}{"armor_path": armorPath, "key_id": f.KeyID})
	return nil
}

// Rotate generates a fresh keypair in namespace, re-seals every armored
// file in armorPaths under it, and only then deletes the old key from the
// keychain. If any file fails to re-seal, every file already rotated is
// rolled back by re-sealing it with the old key, and the new key is
// removed before returning the error.
func Rotate(ctx context.Context, kc keychain.Keychain, namespace string, armorPaths []string) (newKeyID string, err error) {
	if len(armorPaths) == 0 {
		return "", crypterrors.New(crypterrors.InvalidInput, "rotation requires at least one vault file")
	}

	oldKeyID, err := currentKeyID(armorPaths[0])
	if err != nil {
		return "", err
	}

	newKeyID, err = GenerateKeyPair(ctx, kc, namespace)
	if err != nil {
		return "", err
	}

	rotated := make([]string, 0, len(armorPaths))
	for _, path := range armorPaths {
		if err := rotateOne(ctx, kc, path, newKeyID); err != nil {
			rollback(ctx, kc, rotated, oldKeyID)
			DeleteKey(ctx, kc, newKeyID)
			return "", err
		}
		rotated = append(rotated, path)
	}

	if err := DeleteKey(ctx, kc, oldKeyID); err != nil {
		return newKeyID, err
	}
	audit.Append(ctx, audit.EventKeyRotation, map[string]interface{}{"namespace": namespace, "from": oldKeyID, "to": newKeyID})
	return newKeyID, nil
}

func currentKeyID(armorPath string) (string, error) {
	data, err := os.ReadFile(armorPath)
	if err != nil {
		return "", crypterrors.Wrap(crypterrors.Io, "read armored file to discover current key", err)
	}
	return peekKeyID(data)
}

func rotateOne(ctx context.Context, kc keychain.Keychain, armorPath, newKeyID string) error {
	if err := Unseal(ctx, kc, armorPath); err != nil {
		return err
	}
	return Seal(ctx, kc, DBPath(armorPath), newKeyID)
}

// rollback re-seals every already-rotated file back under the old key.
// Best-effort: a failure here is not surfaced, since the caller is already
// propagating the original rotation error and a half-rolled-back state is
// still recoverable by a future Rotate attempt.
func rollback(ctx context.Context, kc keychain.Keychain, rotated []string, oldKeyID string) {
	for _, path := range rotated {
		if err := Unseal(ctx, kc, path); err != nil {
			continue
		}
		Seal(ctx, kc, DBPath(path), oldKeyID)
	}
}
