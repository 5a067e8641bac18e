package armor

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/cryptkit/vault/internal/audit"
	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/keychain"
	"github.com/cryptkit/vault/internal/pqkem"
	"github.com/google/uuid"
)

// keychainService is the OS keychain service name under which every armor
// keypair is stored, regardless of namespace.
const keychainService = "cryptkit.pqkem"

// storedKeyPair is the JSON shape persisted to the keychain, base64
// because go-keyring's Set takes a string secret.
type storedKeyPair struct {
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"private_key"`
}

// NewKeyID mints a fresh keychain identifier scoped to namespace:
// "<namespace>:<uuid>", so concurrent key versions never collide.
func NewKeyID(namespace string) string {
	return namespace + ":" + uuid.NewString()
}

// GenerateKeyPair creates a new ML-KEM-768 keypair, stores it in the
// keychain under a fresh id in namespace, and returns that id.
func GenerateKeyPair(ctx context.Context, kc keychain.Keychain, namespace string) (keyID string, err error) {
	kp, err := pqkem.Generate()
	if err != nil {
		return "", err
	}
	keyID = NewKeyID(namespace)
	if err := storeKeyPair(ctx, kc, keyID, kp); err != nil {
		return "", err
	}
	audit.Append(ctx, audit.EventKeyGeneration, map[string]interface{}{"key_id": keyID, "algorithm": "ML-KEM-768"})
	return keyID, nil
}

func storeKeyPair(ctx context.Context, kc keychain.Keychain, keyID string, kp *pqkem.KeyPair) error {
	stored := storedKeyPair{PublicKey: kp.PublicKeyBytes(), PrivateKey: kp.PrivateKeyBytes()}
	data, err := json.Marshal(stored)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Internal, "marshal armor keypair", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return crypterrors.Do(ctx, crypterrors.ClassNetwork, func() error {
		return kc.Set(ctx, keychainService, keyID, encoded)
	})
}

// LoadPublicKey returns only the public key bytes for keyID, for the seal
// side which never needs the secret key.
func LoadPublicKey(ctx context.Context, kc keychain.Keychain, keyID string) ([]byte, error) {
	stored, err := loadStoredKeyPair(ctx, kc, keyID)
	if err != nil {
		return nil, err
	}
	return stored.PublicKey, nil
}

// LoadKeyPair returns the full keypair for keyID, for the unseal side.
func LoadKeyPair(ctx context.Context, kc keychain.Keychain, keyID string) (*pqkem.KeyPair, error) {
	stored, err := loadStoredKeyPair(ctx, kc, keyID)
	if err != nil {
		return nil, err
	}
	return pqkem.FromBytes(stored.PrivateKey, stored.PublicKey)
}

func loadStoredKeyPair(ctx context.Context, kc keychain.Keychain, keyID string) (*storedKeyPair, error) {
	var encoded string
	err := crypterrors.Do(ctx, crypterrors.ClassNetwork, func() error {
		var getErr error
		encoded, getErr = kc.Get(ctx, keychainService, keyID)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "decode armor keypair", err)
	}
	var stored storedKeyPair
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "unmarshal armor keypair", err)
	}
	return &stored, nil
}

// DeleteKey removes keyID from the keychain, called once rotation has
// fully succeeded.
func DeleteKey(ctx context.Context, kc keychain.Keychain, keyID string) error {
	return crypterrors.Do(ctx, crypterrors.ClassNetwork, func() error {
		return kc.Delete(ctx, keychainService, keyID)
	})
}
