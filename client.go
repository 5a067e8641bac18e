package cryptkit

import (
	"context"
	"os"

	"github.com/cryptkit/vault/internal/armor"
	"github.com/cryptkit/vault/internal/audit"
	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/keychain"
	"github.com/cryptkit/vault/internal/noncemgr"
	"github.com/cryptkit/vault/internal/pqkem"
	"github.com/cryptkit/vault/internal/pqsign"
	"github.com/cryptkit/vault/internal/streampipe"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Environment variable names read by the toolkit, per the external
// interface contract shared with the CLI layer that consumes this
// library.
const (
	EnvVaultJWT              = "VAULT_JWT"
	EnvKeyEncryptionPassword = "CRYYPT_KEY_ENCRYPTION_PASSPHRASE"
)

// Toolkit is the unified entry point for cryptkit's symmetric, nonce,
// streaming, vault, and post-quantum armor subsystems. Construct with New.
type Toolkit struct {
	log      zerolog.Logger
	keychain keychain.Keychain

	// AmbientJWT is the value of VAULT_JWT at construction time, if set.
	AmbientJWT string
	// KeyEncryptionPassphrase is the value of CRYYPT_KEY_ENCRYPTION_PASSPHRASE
	// at construction time, if set.
	KeyEncryptionPassphrase string
}

// New constructs a Toolkit. By default it loads a ".env" file from the
// working directory (if present, via godotenv — never an error if absent)
// before reading the ambient environment variables, and uses the real OS
// keychain. Both can be overridden with Option.
func New(opts ...Option) (*Toolkit, error) {
	cfg := &toolkitConfig{
		logger:  zerolog.Nop(),
		loadEnv: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.loadEnv {
		// Intentionally ignore the error: a missing .env file is the
		// common case, not a failure.
		_ = godotenv.Load()
	}

	if cfg.keychain == nil {
		cfg.keychain = keychain.NewOSKeychain()
	}

	kit := &Toolkit{
		log:                     cfg.logger,
		keychain:                cfg.keychain,
		AmbientJWT:              os.Getenv(EnvVaultJWT),
		KeyEncryptionPassphrase: os.Getenv(EnvKeyEncryptionPassword),
	}
	kit.log.Debug().Msg("cryptkit toolkit initialized")
	return kit, nil
}

// Keychain returns the keychain backend this toolkit uses for post-quantum
// armor key storage.
func (k *Toolkit) Keychain() keychain.Keychain { return k.keychain }

// newAuditChain builds the security-audit chain attached to every Vault
// and Seal/Unseal/Rotate call the toolkit makes, honoring WithAuditSink
// and WithAuditSessionID.
func (k *Toolkit) newAuditChain(cfg *vaultConfig) *audit.Chain {
	sessionID := cfg.auditSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return audit.NewChain(sessionID, cfg.auditSink)
}

// GenerateArmorKey creates a fresh ML-KEM-768 keypair in the toolkit's
// keychain, scoped to namespace, and returns its id.
func (k *Toolkit) GenerateArmorKey(ctx context.Context, namespace string) (keyID string, err error) {
	keyID, err = armor.GenerateKeyPair(ctx, k.keychain, namespace)
	if err != nil {
		k.log.Error().Err(err).Str("namespace", namespace).Msg("generate armor key failed")
		return "", err
	}
	k.log.Info().Str("namespace", namespace).Str("key_id", keyID).Msg("armor key generated")
	return keyID, nil
}

// SealVault encrypts the vault database file at dbPath under keyID's
// public key and shreds the plaintext. dbPath should refer to a vault that
// has already been closed.
func (k *Toolkit) SealVault(ctx context.Context, dbPath, keyID string) error {
	if err := armor.Seal(ctx, k.keychain, dbPath, keyID); err != nil {
		k.log.Error().Err(err).Str("db_path", dbPath).Msg("seal vault failed")
		return err
	}
	k.log.Info().Str("db_path", dbPath).Str("key_id", keyID).Msg("vault sealed")
	return nil
}

// SealVaultSigned is SealVault plus a detached post-quantum signature over
// the armored frame, for callers that want integrity independent of the
// AEAD tag (e.g. verifying provenance before trusting a transferred file).
func (k *Toolkit) SealVaultSigned(ctx context.Context, dbPath, keyID string, signer *pqsign.KeyPair) error {
	if err := armor.SealWithSignature(ctx, k.keychain, dbPath, keyID, signer); err != nil {
		k.log.Error().Err(err).Str("db_path", dbPath).Msg("seal vault with signature failed")
		return err
	}
	k.log.Info().Str("db_path", dbPath).Str("key_id", keyID).Msg("vault sealed and signed")
	return nil
}

// VerifyVaultSignature verifies a detached signature previously attached
// by SealVaultSigned, without unsealing the armor itself.
func (k *Toolkit) VerifyVaultSignature(armorPath string, scheme pqsign.Scheme, publicKey []byte) error {
	return armor.VerifySignature(armorPath, scheme, publicKey)
}

// UnsealVault reverses SealVault: decrypts armorPath back to its plaintext
// database file and removes the armored artifact.
func (k *Toolkit) UnsealVault(ctx context.Context, armorPath string) error {
	if err := armor.Unseal(ctx, k.keychain, armorPath); err != nil {
		k.log.Error().Err(err).Str("armor_path", armorPath).Msg("unseal vault failed")
		return err
	}
	k.log.Info().Str("armor_path", armorPath).Msg("vault unsealed")
	return nil
}

// RotateArmorKeys generates a fresh keypair in namespace and re-seals
// every armored file in armorPaths under it, rolling back on any failure.
func (k *Toolkit) RotateArmorKeys(ctx context.Context, namespace string, armorPaths []string) (newKeyID string, err error) {
	newKeyID, err = armor.Rotate(ctx, k.keychain, namespace, armorPaths)
	if err != nil {
		k.log.Error().Err(err).Str("namespace", namespace).Msg("armor key rotation failed")
		return "", err
	}
	k.log.Info().Str("namespace", namespace).Str("new_key_id", newKeyID).Int("files", len(armorPaths)).Msg("armor keys rotated")
	return newKeyID, nil
}

// GenerateKEMKeyPair creates a standalone ML-KEM-768 keypair, for callers
// that want post-quantum key encapsulation outside of vault armor.
func (k *Toolkit) GenerateKEMKeyPair() (*pqkem.KeyPair, error) {
	return pqkem.Generate()
}

// GenerateSignKeyPair creates a standalone signing keypair for scheme.
// Only pqsign.SchemeMLDSA65 has an available implementation; the other
// named schemes return an error identifying the gap rather than faking a
// signature.
func (k *Toolkit) GenerateSignKeyPair(scheme pqsign.Scheme) (*pqsign.KeyPair, error) {
	return pqsign.Generate(scheme)
}

// NewNonceManager constructs a nonce manager from a 64-byte master secret,
// for authenticated, replay-protected nonce generation and verification
// outside of the vault engine.
func (k *Toolkit) NewNonceManager(masterSecret []byte, cfg *noncemgr.Config) (*noncemgr.Manager, error) {
	return noncemgr.New(masterSecret, cfg)
}

// SealStream compresses, optionally hashes, and encrypts plaintext,
// returning the resulting chunk stream. See streampipe.Options for the
// compression/cipher selection.
func (k *Toolkit) SealStream(ctx context.Context, plaintext []byte, opts streampipe.Options) (streampipe.Result, error) {
	result, err := streampipe.Seal(ctx, plaintext, opts)
	if err != nil {
		k.log.Error().Err(err).Msg("seal stream failed")
		return streampipe.Result{}, err
	}
	return result, nil
}

// OpenStream reverses SealStream.
func (k *Toolkit) OpenStream(ctx context.Context, chunks [][]byte, opts streampipe.Options) ([]byte, error) {
	plaintext, err := streampipe.Open(ctx, chunks, opts)
	if err != nil {
		k.log.Error().Err(err).Msg("open stream failed")
		return nil, err
	}
	return plaintext, nil
}

// requirePassphrase returns passphrase if non-empty, otherwise falls back
// to the toolkit's KeyEncryptionPassphrase loaded from
// CRYYPT_KEY_ENCRYPTION_PASSPHRASE, returning an error if neither is set.
func (k *Toolkit) requirePassphrase(passphrase string) (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if k.KeyEncryptionPassphrase != "" {
		return k.KeyEncryptionPassphrase, nil
	}
	return "", crypterrors.New(crypterrors.InvalidInput, "no passphrase supplied and "+EnvKeyEncryptionPassword+" is not set")
}
