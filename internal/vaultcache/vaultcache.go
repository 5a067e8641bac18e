// Package vaultcache implements the vault's secure LRU cache: ciphertext
// only, eviction order delegated to hashicorp/golang-lru, with a TTL check
// layered on top and an optional background persistence channel.
package vaultcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is a cached row. Value is always ciphertext; the cache never holds
// plaintext, matching the "secure" in secure LRU cache.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// PersistenceOp describes a write the cache wants mirrored to durable
// storage. Grounded on cache/operations.rs's PersistenceOperation enum.
type PersistenceOp struct {
	Kind  PersistenceKind
	Key   string
	Value []byte
}

// PersistenceKind names the kind of mirrored operation.
type PersistenceKind int

const (
	PersistSet PersistenceKind = iota
	PersistDelete
)

// Cache is a bounded, TTL-aware, ciphertext-only LRU cache with an optional
// background persistence sink.
type Cache struct {
	lru           *lru.Cache[string, Entry]
	persistence   chan<- PersistenceOp
	accessCounter atomic.Uint64
}

// Config configures a Cache.
type Config struct {
	// MaxEntries bounds the cache's eviction-tracked size.
	MaxEntries int
	// Persistence, if non-nil, receives a PersistenceOp on every Set/Delete.
	// The cache never blocks on a full channel; see Set.
	Persistence chan<- PersistenceOp
}

// New constructs a Cache. MaxEntries must be positive.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		return nil, crypterrors.New(crypterrors.InvalidInput, "cache max entries must be positive")
	}
	inner, err := lru.New[string, Entry](cfg.MaxEntries)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "construct LRU cache", err)
	}
	return &Cache{lru: inner, persistence: cfg.Persistence}, nil
}

// Get returns the cached ciphertext for key, or ok=false if absent or
// expired. A TTL-expired entry is evicted on read.
func (c *Cache) Get(key string) (value []byte, ok bool) {
	c.accessCounter.Add(1)
	entry, found := c.lru.Get(key)
	if !found {
		return nil, false
	}
	if entry.expired(time.Now()) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.Value, true
}

// Set stores ciphertext for key with an optional TTL (zero means no
// expiry) and mirrors the write to the persistence channel, if configured,
// without blocking if the channel is full — a slow persistence consumer
// must not stall cache writers.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.lru.Add(key, Entry{Value: value, ExpiresAt: expiresAt})
	c.mirror(ctx, PersistenceOp{Kind: PersistSet, Key: key, Value: value})
}

// Delete evicts key and mirrors the deletion to the persistence channel.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.lru.Remove(key)
	c.mirror(ctx, PersistenceOp{Kind: PersistDelete, Key: key})
}

func (c *Cache) mirror(ctx context.Context, op PersistenceOp) {
	if c.persistence == nil {
		return
	}
	select {
	case c.persistence <- op:
	case <-ctx.Done():
	default:
	}
}

// Len reports the current number of tracked entries (including any not
// yet lazily evicted for TTL expiry).
func (c *Cache) Len() int { return c.lru.Len() }

// Purge empties the cache without emitting persistence operations; callers
// use this on lock to ensure no ciphertext lingers in memory across a
// vault lock/unlock cycle.
func (c *Cache) Purge() { c.lru.Purge() }

// AccessCount returns the running count of Get calls since construction.
// Diagnostic only: golang-lru/v2 already serializes eviction order
// internally, so this counter does not gate any cache behavior.
func (c *Cache) AccessCount() uint64 { return c.accessCounter.Load() }
