package vaultsession

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// PersistedSession is the row mirrored to storage so a session survives a
// process restart. The vault encryption key itself is never persisted;
// Salt lets a restart detect that the vault's key material has since
// rotated out from under a stale session.
type PersistedSession struct {
	Token        string    `json:"token"`
	Salt         []byte    `json:"salt"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// SessionStore is the subset of internal/docstore.Store persistence needs.
type SessionStore interface {
	PutSession(ctx context.Context, key []byte, value []byte) error
	GetSession(ctx context.Context, key []byte) ([]byte, error)
	DeleteSession(ctx context.Context, key []byte) error
}

// SessionKey derives the storage key for a vault's session row:
// SHA-256(vault_path).
func SessionKey(vaultPath string) []byte {
	sum := sha256.Sum256([]byte(vaultPath))
	return sum[:]
}

// Persist writes a session row for vaultPath.
func Persist(ctx context.Context, store SessionStore, vaultPath string, session PersistedSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Internal, "marshal session row", err)
	}
	return store.PutSession(ctx, SessionKey(vaultPath), data)
}

// Restore reads back a previously persisted session row, if any.
func Restore(ctx context.Context, store SessionStore, vaultPath string) (*PersistedSession, error) {
	data, err := store.GetSession(ctx, SessionKey(vaultPath))
	if err != nil {
		return nil, err
	}
	var session PersistedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "unmarshal session row", err)
	}
	return &session, nil
}

// Forget removes a persisted session row, called on explicit lock.
func Forget(ctx context.Context, store SessionStore, vaultPath string) error {
	return store.DeleteSession(ctx, SessionKey(vaultPath))
}
