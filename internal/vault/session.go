package vault

import (
	"bytes"
	"context"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/vaultsession"
)

// IssueSession mints a JWT session bound to this vault's id, derived from
// the unlocked DEK, and persists the session row — including the vault's
// current KEK salt, so a later restore can detect that the passphrase has
// since been rotated out from under the session — so it survives a process
// restart. Requires the vault to be unlocked.
func (v *Vault) IssueSession(ctx context.Context, ttl time.Duration) (token string, err error) {
	dek, err := v.requireUnlocked()
	if err != nil {
		return "", err
	}
	data, err := v.store.GetMeta(ctx, metaKey)
	if err != nil {
		return "", err
	}
	meta, err := unmarshalMeta(data)
	if err != nil {
		return "", err
	}

	secret := vaultsession.DeriveSecret(dek, v.vaultID)
	token, sessionID, err := vaultsession.Issue(secret, v.vaultID, ttl)
	if err != nil {
		return "", err
	}
	now := time.Now()
	if ttl <= 0 {
		ttl = vaultsession.DefaultTTL
	}
	session := vaultsession.PersistedSession{
		Token:        token,
		Salt:         meta.Salt,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastAccessed: now,
	}
	_ = sessionID // session id is embedded in the token claims, not stored separately
	if err := vaultsession.Persist(ctx, v.store, v.path, session); err != nil {
		return "", err
	}
	return token, nil
}

// VerifySession validates token against this vault's derived session
// secret. Requires the vault to be unlocked, since the secret derives from
// the DEK.
func (v *Vault) VerifySession(token string) (*vaultsession.Claims, error) {
	dek, err := v.requireUnlocked()
	if err != nil {
		return nil, err
	}
	secret := vaultsession.DeriveSecret(dek, v.vaultID)
	return vaultsession.Verify(token, secret, v.vaultID)
}

// RestoreSession reloads a previously persisted session row for this vault,
// verifying both that it has not expired and that the vault's key material
// has not rotated out from under it since the session was issued (salt
// equality against the vault's current meta). If passphrase is non-empty,
// RestoreSession also re-derives the encryption key and unlocks the vault,
// so a caller holding a valid persisted session does not need to reprompt
// for a passphrase to resume normal use; an empty passphrase returns the
// session without unlocking.
func (v *Vault) RestoreSession(ctx context.Context, passphrase string) (*vaultsession.PersistedSession, error) {
	session, err := vaultsession.Restore(ctx, v.store, v.path)
	if err != nil {
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		_ = vaultsession.Forget(ctx, v.store, v.path)
		return nil, crypterrors.New(crypterrors.Expired, "persisted vault session has expired")
	}

	data, err := v.store.GetMeta(ctx, metaKey)
	if err != nil {
		return nil, err
	}
	meta, err := unmarshalMeta(data)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(session.Salt, meta.Salt) {
		_ = vaultsession.Forget(ctx, v.store, v.path)
		return nil, crypterrors.New(crypterrors.Expired, "vault key material has rotated since this session was issued")
	}

	if passphrase != "" {
		if err := v.Unlock(ctx, passphrase); err != nil {
			return nil, err
		}
	}
	return session, nil
}
