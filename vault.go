package cryptkit

import (
	"context"
	"time"

	"github.com/cryptkit/vault/internal/audit"
	"github.com/cryptkit/vault/internal/docstore"
	intvault "github.com/cryptkit/vault/internal/vault"
	"github.com/cryptkit/vault/internal/vaultsession"
	"github.com/rs/zerolog"
)

// Vault is a single encrypted key/value store, opened or created by a
// Toolkit. It wraps the engine with structured logging and a bound
// security-audit chain.
type Vault struct {
	inner      *intvault.Vault
	log        zerolog.Logger
	audit      *audit.Chain
	sessionTTL time.Duration
}

// FoundEntry is a decrypted match returned by Find.
type FoundEntry = intvault.FoundEntry

// OpenVault opens (creating the backing file if absent) the vault at path
// in the locked state. Call Unlock, or use CreateVault for a brand-new
// vault, before any Put/Get/Delete/Find call.
func (k *Toolkit) OpenVault(path string, opts ...VaultOption) (*Vault, error) {
	cfg := &vaultConfig{cacheSize: 1024, sessionTTL: vaultsession.DefaultTTL}
	for _, opt := range opts {
		opt(cfg)
	}

	iv, err := intvault.Open(path, cfg.cacheSize)
	if err != nil {
		k.log.Error().Err(err).Str("path", path).Msg("open vault failed")
		return nil, err
	}

	chain := k.newAuditChain(cfg)
	iv.SetAuditChain(chain)

	return &Vault{inner: iv, log: k.log, audit: chain, sessionTTL: cfg.sessionTTL}, nil
}

// CreateVault initializes a brand-new vault at path under passphrase (or,
// if empty, the toolkit's ambient CRYYPT_KEY_ENCRYPTION_PASSPHRASE),
// leaving it unlocked.
func (k *Toolkit) CreateVault(ctx context.Context, path, passphrase string, opts ...VaultOption) (*Vault, error) {
	passphrase, err := k.requirePassphrase(passphrase)
	if err != nil {
		return nil, err
	}

	cfg := &vaultConfig{cacheSize: 1024, sessionTTL: vaultsession.DefaultTTL}
	for _, opt := range opts {
		opt(cfg)
	}

	chain := k.newAuditChain(cfg)
	ctx = audit.WithChain(ctx, chain)

	iv, err := intvault.Create(ctx, path, passphrase)
	if err != nil {
		k.log.Error().Err(err).Str("path", path).Msg("create vault failed")
		return nil, err
	}

	k.log.Info().Str("path", path).Msg("vault created")
	return &Vault{inner: iv, log: k.log, audit: chain, sessionTTL: cfg.sessionTTL}, nil
}

// AuditChain returns this vault's security-audit chain. Verify() on it
// confirms no record has been altered or removed since creation.
func (v *Vault) AuditChain() *audit.Chain { return v.audit }

// Unlock derives the key-encryption key from passphrase and unwraps the
// vault's data-encryption key.
func (v *Vault) Unlock(ctx context.Context, passphrase string) error {
	if err := v.inner.Unlock(ctx, passphrase); err != nil {
		v.log.Warn().Err(err).Msg("vault unlock failed")
		return err
	}
	v.log.Info().Msg("vault unlocked")
	return nil
}

// Lock wipes the in-memory data-encryption key and purges the ciphertext
// cache.
func (v *Vault) Lock(ctx context.Context) error {
	if err := v.inner.Lock(ctx); err != nil {
		return err
	}
	v.log.Info().Msg("vault locked")
	return nil
}

// Close locks the vault and releases the backing document store.
func (v *Vault) Close(ctx context.Context) error {
	if err := v.inner.Close(ctx); err != nil {
		v.log.Error().Err(err).Msg("close vault failed")
		return err
	}
	return nil
}

// IsUnlocked reports whether the vault currently holds a usable
// data-encryption key.
func (v *Vault) IsUnlocked() bool { return v.inner.IsUnlocked() }

// Put encrypts value and upserts it under (namespace, key).
func (v *Vault) Put(ctx context.Context, namespace, key string, value []byte, metadata map[string]any) error {
	return v.inner.Put(ctx, namespace, key, value, metadata)
}

// Get decrypts and returns the value stored under (namespace, key).
func (v *Vault) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	return v.inner.Get(ctx, namespace, key)
}

// Delete verifies that (namespace, key) exists, then removes it;
// deleting an absent key returns NotFound rather than succeeding silently.
func (v *Vault) Delete(ctx context.Context, namespace, key string) error {
	return v.inner.Delete(ctx, namespace, key)
}

// Find scans namespace for rows whose metadata satisfies predicate,
// decrypting each match.
func (v *Vault) Find(ctx context.Context, namespace string, predicate func(docstore.Row) bool) ([]FoundEntry, error) {
	return v.inner.Find(ctx, namespace, predicate)
}

// ListNamespaces returns every namespace with at least one stored row.
func (v *Vault) ListNamespaces(ctx context.Context) ([]string, error) {
	return v.inner.ListNamespaces(ctx)
}

// ChangePassphrase generates a new data-encryption key, re-encrypts every
// stored row under it, and wraps the new key under a freshly salted key
// derived from newPassphrase — so old ciphertext is no longer decryptable
// with whatever key material may have leaked before rotation.
// oldPassphrase must unwrap the currently stored key.
func (v *Vault) ChangePassphrase(ctx context.Context, oldPassphrase, newPassphrase string) error {
	if err := v.inner.ChangePassphrase(ctx, oldPassphrase, newPassphrase); err != nil {
		v.log.Warn().Err(err).Msg("change passphrase failed")
		return err
	}
	v.log.Info().Msg("vault passphrase changed")
	return nil
}

// IssueSession mints a JWT session bound to this vault, valid for ttl (or
// the WithSessionTTL default, if ttl is zero), and persists it so it
// survives a process restart.
func (v *Vault) IssueSession(ctx context.Context, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = v.sessionTTL
	}
	return v.inner.IssueSession(ctx, ttl)
}

// VerifySession validates token against this vault's derived session
// secret, rejecting tokens issued for a different vault.
func (v *Vault) VerifySession(token string) (*vaultsession.Claims, error) {
	return v.inner.VerifySession(token)
}

// RestoreSession reloads a previously persisted, unexpired session for this
// vault, verifying it was issued against the vault's current passphrase
// (salt equality). When passphrase is non-empty, it is also used to
// re-derive the encryption key and unlock the vault, so a caller holding a
// valid session need not reprompt.
func (v *Vault) RestoreSession(ctx context.Context, passphrase string) (*vaultsession.PersistedSession, error) {
	session, err := v.inner.RestoreSession(ctx, passphrase)
	if err != nil {
		v.log.Warn().Err(err).Msg("restore session failed")
		return nil, err
	}
	v.log.Debug().Msg("vault session restored")
	return session, nil
}
