// Package docstore implements the embedded document store backing the
// vault (C4): one bbolt bucket per namespace, a reserved bucket for rows
// with no namespace, a meta bucket, and a jwt_sessions bucket.
package docstore

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
	bolt "go.etcd.io/bbolt"
)

// defaultBucket holds rows stored with no explicit namespace. The NUL
// prefix keeps it out of the way of any real namespace name, which
// ListNamespaces relies on to exclude it from its results.
var defaultBucket = []byte("\x00default")

// metaBucket holds vault-wide metadata: salt, Argon2id parameters, the
// passphrase verifier.
var metaBucket = []byte("\x00meta")

// sessionBucket holds persisted JWT session rows, keyed by
// SHA-256(vault_path).
var sessionBucket = []byte("\x00jwt_sessions")

// Row is one stored document.
type Row struct {
	Key       string         `json:"key"`
	Value     []byte         `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Namespace string         `json:"namespace,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// Store is a bbolt-backed embedded document store.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the document store at path, ensuring the meta and
// session buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Io, "open document store file", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{metaBucket, sessionBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, crypterrors.Wrap(crypterrors.Io, "initialize document store buckets", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error { return s.db.Close() }

func bucketFor(namespace string) []byte {
	if namespace == "" {
		return defaultBucket
	}
	return []byte(namespace)
}

// recordKey length-prefixes key so it is collision-safe as a raw bolt key
// even though, with one bucket per namespace, a bare key would already be
// unambiguous; the prefix is kept so record ids have a stable, explicit
// width the same way the reference backend's natural record ids do.
func recordKey(key string) []byte {
	buf := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(key)))
	copy(buf[4:], key)
	return buf
}

// Put upserts a row, preserving created_at across an update within the
// same transaction that reads the existing row.
func (s *Store) Put(_ context.Context, namespace, key string, value []byte, metadata map[string]any) error {
	now := time.Now().UTC()
	rk := recordKey(key)
	bucketName := bucketFor(namespace)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		createdAt := now
		if existing := b.Get(rk); existing != nil {
			var prev Row
			if err := unmarshalRow(existing, &prev); err == nil {
				createdAt = prev.CreatedAt
			}
		}
		row := Row{
			Key:       key,
			Value:     value,
			Metadata:  metadata,
			Namespace: namespace,
			CreatedAt: createdAt,
			UpdatedAt: now,
		}
		data, err := marshalRow(&row)
		if err != nil {
			return err
		}
		return b.Put(rk, data)
	})
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "put document row", err)
	}
	return nil
}

// Get retrieves a row by namespace and key. A namespace of "" matches only
// rows stored with no namespace; a non-empty namespace never falls back
// to the default bucket.
func (s *Store) Get(_ context.Context, namespace, key string) (*Row, error) {
	rk := recordKey(key)
	bucketName := bucketFor(namespace)
	var row Row
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		data := b.Get(rk)
		if data == nil {
			return nil
		}
		found = true
		return unmarshalRow(data, &row)
	})
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Io, "read document row", err)
	}
	if !found {
		return nil, crypterrors.New(crypterrors.NotFound, "no document for key in namespace")
	}
	return &row, nil
}

// Delete removes a row by namespace and key, matching Get's strict
// namespace semantics. Deleting a key that does not exist returns NotFound:
// existence is verified inside the same transaction that performs the
// delete.
func (s *Store) Delete(_ context.Context, namespace, key string) error {
	rk := recordKey(key)
	bucketName := bucketFor(namespace)
	notFound := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil || b.Get(rk) == nil {
			notFound = true
			return nil
		}
		return b.Delete(rk)
	})
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "delete document row", err)
	}
	if notFound {
		return crypterrors.New(crypterrors.NotFound, "no document for key in namespace")
	}
	return nil
}

// Find returns every row in namespace for which predicate returns true.
func (s *Store) Find(_ context.Context, namespace string, predicate func(Row) bool) ([]Row, error) {
	bucketName := bucketFor(namespace)
	var rows []Row
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row Row
			if err := unmarshalRow(v, &row); err != nil {
				continue
			}
			if predicate == nil || predicate(row) {
				rows = append(rows, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Io, "scan document rows", err)
	}
	return rows, nil
}

// RewriteVault re-encrypts every stored row across every namespace via
// transform and writes newMetaValue under metaKey, all inside a single bolt
// transaction: either the whole passphrase rotation commits, or none of it
// does and the prior key material and ciphertexts are left untouched.
func (s *Store) RewriteVault(_ context.Context, metaKey string, newMetaValue []byte, transform func(namespace, key string, value []byte) ([]byte, error)) error {
	type kv struct {
		key []byte
		row Row
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		var bucketNames [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			switch string(name) {
			case string(metaBucket), string(sessionBucket):
				return nil
			}
			bucketNames = append(bucketNames, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}

		for _, name := range bucketNames {
			b := tx.Bucket(name)
			namespace := string(name)
			if namespace == string(defaultBucket) {
				namespace = ""
			}

			var rows []kv
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var row Row
				if err := unmarshalRow(v, &row); err != nil {
					return err
				}
				rows = append(rows, kv{key: append([]byte(nil), k...), row: row})
			}

			for _, item := range rows {
				newValue, err := transform(namespace, item.row.Key, item.row.Value)
				if err != nil {
					return err
				}
				item.row.Value = newValue
				data, err := marshalRow(&item.row)
				if err != nil {
					return err
				}
				if err := b.Put(item.key, data); err != nil {
					return err
				}
			}
		}

		return tx.Bucket(metaBucket).Put([]byte(metaKey), newMetaValue)
	})
	if err != nil {
		return crypterrors.Wrap(crypterrors.Io, "rotate vault encryption", err)
	}
	return nil
}

// ListNamespaces returns every namespace that currently has at least one
// bucket, excluding the reserved meta/session/default buckets. The empty
// default namespace is reported as "" if it has any rows.
func (s *Store) ListNamespaces(_ context.Context) ([]string, error) {
	var namespaces []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			switch string(name) {
			case string(metaBucket), string(sessionBucket):
				return nil
			case string(defaultBucket):
				if b.Stats().KeyN > 0 {
					namespaces = append(namespaces, "")
				}
				return nil
			default:
				namespaces = append(namespaces, string(name))
				return nil
			}
		})
	})
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Io, "list namespaces", err)
	}
	return namespaces, nil
}
