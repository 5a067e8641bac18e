// Package vault implements the C4 storage engine: a passphrase-protected,
// encrypted key/value store layered over internal/docstore, with a
// ciphertext LRU cache, JWT sessions, and login-cooldown lockout. Modeled
// on frnd1406-NasServer's EncryptionService (locked/unlocked state guarded
// by a mutex, a data-encryption key wrapped by an Argon2id-derived
// key-encryption key, multi-pass zeroization on lock) combined with the
// per-vault login-cooldown tracked by the Rust vault_store's auth layer.
package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/cryptkit/vault/internal/audit"
	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/docstore"
	"github.com/cryptkit/vault/internal/envelope"
	"github.com/cryptkit/vault/internal/vaultcache"
	"github.com/cryptkit/vault/internal/vaultsession"
)

// maxFailedUnlocks and cooldownWindow implement the login cooldown: six
// failed unlocks within thirty seconds lock the vault out until the window
// elapses, independent of whether the passphrase later supplied is correct.
const (
	maxFailedUnlocks = 6
	cooldownWindow   = 30 * time.Second
)

// Vault is a single encrypted key/value store. The zero value is not
// usable; construct with Open or Create.
type Vault struct {
	path    string
	store   *docstore.Store
	cache   *vaultcache.Cache
	vaultID string

	mu       sync.RWMutex
	unlocked bool
	dek      []byte // 32 raw bytes, valid only while unlocked

	cooldown cooldownTracker
	audit    *audit.Chain
}

// SetAuditChain attaches a security audit chain; every authentication
// attempt and lock/unlock transition from this point on appends a record
// to it. Optional: a vault with no chain attached simply skips auditing.
func (v *Vault) SetAuditChain(chain *audit.Chain) { v.audit = chain }

func (v *Vault) auditAppend(eventType audit.EventType, detail map[string]interface{}) {
	if v.audit == nil {
		return
	}
	v.audit.Append(eventType, detail)
}

// cooldownTracker records recent failed unlock attempts in memory, per
// vault instance (never persisted: a process restart resets the count).
type cooldownTracker struct {
	mu       sync.Mutex
	failures []time.Time
}

func (c *cooldownTracker) recordFailure(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, now)
}

func (c *cooldownTracker) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = nil
}

// locked reports whether six or more failures fall within the trailing
// cooldown window as of now.
func (c *cooldownTracker) locked(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-cooldownWindow)
	recent := c.failures[:0]
	count := 0
	for _, t := range c.failures {
		if t.After(cutoff) {
			recent = append(recent, t)
			count++
		}
	}
	c.failures = recent
	return count >= maxFailedUnlocks
}

// vaultID derives a stable identifier for a vault from its file path, used
// to bind JWT sessions to this specific vault.
func vaultIDFromPath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// Open opens (creating if absent) the backing document store at path,
// returning a Vault in the locked state. Call Create on a fresh path or
// Unlock on an existing one before any Put/Get/Delete/Find call.
func Open(path string, cacheSize int) (*Vault, error) {
	store, err := docstore.Open(path)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := vaultcache.New(vaultcache.Config{MaxEntries: cacheSize})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Vault{
		path:    path,
		store:   store,
		cache:   cache,
		vaultID: vaultIDFromPath(path),
	}, nil
}

// Create initializes a brand-new vault at path with the given passphrase:
// generates a salt and a random 256-bit DEK, wraps the DEK under an
// Argon2id-derived KEK, and persists the wrapping. Returns Conflict if the
// vault at path already has vault metadata. Leaves the vault unlocked.
func Create(ctx context.Context, path, passphrase string) (*Vault, error) {
	v, err := Open(path, 0)
	if err != nil {
		return nil, err
	}
	v.audit = audit.FromContext(ctx)
	if _, err := v.store.GetMeta(ctx, metaKey); err == nil {
		v.store.Close()
		return nil, crypterrors.New(crypterrors.Conflict, "vault already initialized")
	}

	params := envelope.DefaultArgon2Params()
	salt, err := envelope.GenerateSalt(params.SaltSize)
	if err != nil {
		v.store.Close()
		return nil, err
	}
	dek := make([]byte, envelope.KeySize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		v.store.Close()
		return nil, crypterrors.Wrap(crypterrors.Internal, "generate data encryption key", err)
	}

	kek := envelope.DeriveKeyArgon2id(passphrase, salt, params)
	nonce, wrapped, err := wrapDEK(kek.Bytes(), dek)
	kek.Zeroize()
	if err != nil {
		v.store.Close()
		return nil, err
	}

	meta := &metaDocument{
		Salt:          salt,
		Argon2Params:  params,
		WrappedDEKAlg: envelope.AlgAESGCM,
		WrappedNonce:  nonce,
		WrappedDEK:    wrapped,
	}
	data, err := marshalMeta(meta)
	if err != nil {
		v.store.Close()
		return nil, err
	}
	if err := v.store.PutMeta(ctx, metaKey, data); err != nil {
		v.store.Close()
		return nil, err
	}

	v.mu.Lock()
	v.dek = dek
	v.unlocked = true
	v.mu.Unlock()
	v.auditAppend(audit.EventVaultStateTransition, map[string]interface{}{"transition": "create", "success": true})
	return v, nil
}

// Unlock derives the KEK from passphrase and unwraps the stored DEK. A
// wrong passphrase surfaces as AuthenticationFailed and counts against the
// login cooldown; six failures within thirty seconds return Locked
// regardless of whether the supplied passphrase is in fact correct.
func (v *Vault) Unlock(ctx context.Context, passphrase string) error {
	now := time.Now()
	if v.cooldown.locked(now) {
		v.auditAppend(audit.EventAuthenticationAttempt, map[string]interface{}{"success": false, "reason": "cooldown"})
		return crypterrors.New(crypterrors.Locked, "too many failed unlock attempts, vault in cooldown")
	}

	data, err := v.store.GetMeta(ctx, metaKey)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Internal, "vault has no metadata, call Create first", err)
	}
	meta, err := unmarshalMeta(data)
	if err != nil {
		return err
	}

	kek := envelope.DeriveKeyArgon2id(passphrase, meta.Salt, meta.Argon2Params)
	dek, err := unwrapDEK(kek.Bytes(), meta.WrappedNonce, meta.WrappedDEK)
	kek.Zeroize()
	if err != nil {
		v.cooldown.recordFailure(now)
		v.auditAppend(audit.EventAuthenticationAttempt, map[string]interface{}{"success": false})
		return crypterrors.New(crypterrors.AuthenticationFailed, "incorrect vault passphrase")
	}

	v.mu.Lock()
	v.dek = dek
	v.unlocked = true
	v.mu.Unlock()
	v.cooldown.reset()
	v.auditAppend(audit.EventAuthenticationAttempt, map[string]interface{}{"success": true})
	return nil
}

// Lock wipes the in-memory DEK with a multi-pass overwrite (0xFF then
// 0x00, mirroring encryption_service.go's wipe), purges the ciphertext
// cache, and forgets any persisted JWT session for this vault.
func (v *Vault) Lock(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dek != nil {
		for i := range v.dek {
			v.dek[i] = 0xFF
		}
		for i := range v.dek {
			v.dek[i] = 0x00
		}
		v.dek = nil
	}
	v.unlocked = false
	v.cache.Purge()
	v.auditAppend(audit.EventVaultStateTransition, map[string]interface{}{"transition": "lock"})
	return vaultsession.Forget(ctx, v.store, v.path)
}

// Close locks the vault and releases the backing document store.
func (v *Vault) Close(ctx context.Context) error {
	lockErr := v.Lock(ctx)
	closeErr := v.store.Close()
	if lockErr != nil {
		return lockErr
	}
	return closeErr
}

// IsUnlocked reports whether the vault currently holds a usable DEK.
func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.unlocked
}

// requireUnlocked snapshots the current DEK under the read lock, or
// returns Locked if the vault has no key material loaded.
func (v *Vault) requireUnlocked() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return nil, crypterrors.New(crypterrors.Locked, "vault is locked")
	}
	return v.dek, nil
}

func cacheKey(namespace, key string) string { return namespace + "\x00" + key }
