package docstore

import (
	"context"

	"github.com/cryptkit/vault/internal/crypterrors"
	bolt "go.etcd.io/bbolt"
)

// PutMeta writes a raw key/value pair into the vault-wide meta bucket
// (salt, Argon2id parameters, passphrase verifier).
func (s *Store) PutMeta(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), value)
	})
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "write meta key", err)
	}
	return nil
}

// GetMeta reads a raw value from the meta bucket.
func (s *Store) GetMeta(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Io, "read meta key", err)
	}
	if value == nil {
		return nil, crypterrors.New(crypterrors.NotFound, "meta key not set")
	}
	return value, nil
}

// PutSession writes a raw session row, keyed by SHA-256(vault_path).
func (s *Store) PutSession(_ context.Context, sessionKey, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put(sessionKey, value)
	})
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "write session row", err)
	}
	return nil
}

// GetSession reads a raw session row.
func (s *Store) GetSession(_ context.Context, sessionKey []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get(sessionKey)
		if data == nil {
			return nil
		}
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Io, "read session row", err)
	}
	if value == nil {
		return nil, crypterrors.New(crypterrors.NotFound, "session not found")
	}
	return value, nil
}

// DeleteSession removes a persisted session row.
func (s *Store) DeleteSession(_ context.Context, sessionKey []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete(sessionKey)
	})
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "delete session row", err)
	}
	return nil
}
