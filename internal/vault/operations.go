package vault

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/cryptkit/vault/internal/audit"
	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/docstore"
	"github.com/cryptkit/vault/internal/envelope"
)

// sealValue encrypts value under dek with a fresh random nonce, binding
// namespace and key into the AAD so a row cannot be silently moved to a
// different namespace/key on the wire and re-accepted.
func sealValue(dek, namespace, key string, value []byte) ([]byte, error) {
	nonce := make([]byte, envelope.AESNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "generate value nonce", err)
	}
	env, err := envelope.EncryptAESGCM([]byte(dek), value, nonce, []byte(namespace+"\x00"+key))
	if err != nil {
		return nil, err
	}
	return append(env.Nonce, env.Ciphertext...), nil
}

func openValue(dek []byte, namespace, key string, stored []byte) ([]byte, error) {
	if len(stored) < envelope.AESNonceSize {
		return nil, crypterrors.New(crypterrors.InvalidInput, "stored value too short to contain a nonce")
	}
	env := &envelope.Envelope{
		Algorithm:  envelope.AlgAESGCM,
		Nonce:      stored[:envelope.AESNonceSize],
		Ciphertext: stored[envelope.AESNonceSize:],
	}
	return envelope.DecryptAESGCM(dek, env, []byte(namespace+"\x00"+key))
}

// Put encrypts value and upserts it under (namespace, key). Requires the
// vault to be unlocked.
func (v *Vault) Put(ctx context.Context, namespace, key string, value []byte, metadata map[string]any) error {
	dek, err := v.requireUnlocked()
	if err != nil {
		return err
	}
	sealed, err := sealValue(string(dek), namespace, key, value)
	if err != nil {
		return err
	}
	if err := crypterrors.Do(ctx, crypterrors.ClassDB, func() error {
		return v.store.Put(ctx, namespace, key, sealed, metadata)
	}); err != nil {
		return err
	}
	v.cache.Set(ctx, cacheKey(namespace, key), sealed, 0)
	return nil
}

// Get decrypts and returns the value stored under (namespace, key),
// consulting the ciphertext cache before falling back to the document
// store. Requires the vault to be unlocked.
func (v *Vault) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	dek, err := v.requireUnlocked()
	if err != nil {
		return nil, err
	}

	if sealed, ok := v.cache.Get(cacheKey(namespace, key)); ok {
		return openValue(dek, namespace, key, sealed)
	}

	var row *docstore.Row
	if err := crypterrors.Do(ctx, crypterrors.ClassDB, func() error {
		var getErr error
		row, getErr = v.store.Get(ctx, namespace, key)
		return getErr
	}); err != nil {
		return nil, err
	}
	v.cache.Set(ctx, cacheKey(namespace, key), row.Value, 0)
	return openValue(dek, namespace, key, row.Value)
}

// Delete verifies that (namespace, key) exists, then removes it and evicts
// any cached ciphertext, returning NotFound without side effects if no row
// matches. Requires the vault to be unlocked. Appends a security-audit
// record before returning, mirroring the return-before-value guarantee for
// every other state-changing vault operation.
func (v *Vault) Delete(ctx context.Context, namespace, key string) error {
	if _, err := v.requireUnlocked(); err != nil {
		return err
	}
	err := crypterrors.Do(ctx, crypterrors.ClassDB, func() error {
		return v.store.Delete(ctx, namespace, key)
	})
	v.auditAppend(audit.EventVaultStateTransition, map[string]interface{}{
		"transition": "delete",
		"namespace":  namespace,
		"success":    err == nil,
	})
	if err != nil {
		return err
	}
	v.cache.Delete(ctx, cacheKey(namespace, key))
	return nil
}

// FoundEntry is a decrypted match returned by Find.
type FoundEntry struct {
	Key      string
	Value    []byte
	Metadata map[string]any
}

// Find scans namespace for rows whose metadata satisfies predicate,
// decrypting each match. Requires the vault to be unlocked.
func (v *Vault) Find(ctx context.Context, namespace string, predicate func(docstore.Row) bool) ([]FoundEntry, error) {
	dek, err := v.requireUnlocked()
	if err != nil {
		return nil, err
	}
	rows, err := v.store.Find(ctx, namespace, predicate)
	if err != nil {
		return nil, err
	}
	entries := make([]FoundEntry, 0, len(rows))
	for _, row := range rows {
		plaintext, err := openValue(dek, namespace, row.Key, row.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, FoundEntry{Key: row.Key, Value: plaintext, Metadata: row.Metadata})
	}
	return entries, nil
}

// ListNamespaces returns every namespace with at least one stored row.
func (v *Vault) ListNamespaces(ctx context.Context) ([]string, error) {
	if _, err := v.requireUnlocked(); err != nil {
		return nil, err
	}
	return v.store.ListNamespaces(ctx)
}

// ChangePassphrase derives a fresh data encryption key, re-encrypts every
// stored row under it, and re-wraps the new DEK under a freshly salted KEK
// derived from newPassphrase — the full "derive new key, re-encrypt every
// row, update stored verifier and salt atomically" rotation, not merely a
// re-wrap of the existing DEK: a passphrase change must revoke decrypt
// access for anyone who previously captured the old DEK, which re-wrapping
// alone cannot do since the ciphertext at rest would stay unchanged.
// oldPassphrase must unwrap the currently stored DEK. The row rewrite and
// the new metadata document are written via a single RewriteVault call,
// which bbolt commits as one atomic transaction: a crash mid-rotation
// leaves every row and the old meta intact rather than a mix of old- and
// new-keyed ciphertext.
func (v *Vault) ChangePassphrase(ctx context.Context, oldPassphrase, newPassphrase string) error {
	data, err := v.store.GetMeta(ctx, metaKey)
	if err != nil {
		return err
	}
	meta, err := unmarshalMeta(data)
	if err != nil {
		return err
	}

	oldKEK := envelope.DeriveKeyArgon2id(oldPassphrase, meta.Salt, meta.Argon2Params)
	oldDEK, err := unwrapDEK(oldKEK.Bytes(), meta.WrappedNonce, meta.WrappedDEK)
	oldKEK.Zeroize()
	if err != nil {
		v.auditAppend(audit.EventAuthenticationAttempt, map[string]interface{}{"success": false, "reason": "change_passphrase"})
		return crypterrors.New(crypterrors.AuthenticationFailed, "incorrect current passphrase")
	}
	defer envelope.Zeroize(oldDEK)

	newDEK := make([]byte, envelope.KeySize)
	if _, err := io.ReadFull(rand.Reader, newDEK); err != nil {
		return crypterrors.Wrap(crypterrors.Internal, "generate new data encryption key", err)
	}
	defer envelope.Zeroize(newDEK)

	newParams := envelope.DefaultArgon2Params()
	newSalt, err := envelope.GenerateSalt(newParams.SaltSize)
	if err != nil {
		return err
	}
	newKEK := envelope.DeriveKeyArgon2id(newPassphrase, newSalt, newParams)
	newNonce, newWrapped, err := wrapDEK(newKEK.Bytes(), newDEK)
	newKEK.Zeroize()
	if err != nil {
		return err
	}

	newMeta := &metaDocument{
		Salt:          newSalt,
		Argon2Params:  newParams,
		WrappedDEKAlg: envelope.AlgAESGCM,
		WrappedNonce:  newNonce,
		WrappedDEK:    newWrapped,
	}
	newData, err := marshalMeta(newMeta)
	if err != nil {
		return err
	}

	reencrypt := func(namespace, key string, value []byte) ([]byte, error) {
		plaintext, err := openValue(oldDEK, namespace, key, value)
		if err != nil {
			return nil, err
		}
		defer envelope.Zeroize(plaintext)
		return sealValue(string(newDEK), namespace, key, plaintext)
	}
	if err := v.store.RewriteVault(ctx, metaKey, newData, reencrypt); err != nil {
		v.auditAppend(audit.EventVaultStateTransition, map[string]interface{}{"transition": "change_passphrase", "success": false})
		return err
	}

	v.mu.Lock()
	if v.unlocked {
		v.dek = append([]byte(nil), newDEK...)
	}
	v.mu.Unlock()
	v.cache.Purge()
	v.auditAppend(audit.EventVaultStateTransition, map[string]interface{}{"transition": "change_passphrase", "success": true})
	return nil
}
