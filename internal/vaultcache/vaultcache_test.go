package vaultcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := New(Config{MaxEntries: 8})
	require.NoError(t, err)

	c.Set(ctx, "ns/key", []byte("ciphertext"), 0)
	got, ok := c.Get("ns/key")
	require.True(t, ok)
	require.Equal(t, []byte("ciphertext"), got)
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := New(Config{MaxEntries: 8})
	require.NoError(t, err)

	c.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestEvictionBoundsSize(t *testing.T) {
	ctx := context.Background()
	c, err := New(Config{MaxEntries: 2})
	require.NoError(t, err)

	c.Set(ctx, "a", []byte("1"), 0)
	c.Set(ctx, "b", []byte("2"), 0)
	c.Set(ctx, "c", []byte("3"), 0)

	require.LessOrEqual(t, c.Len(), 2)
	_, ok := c.Get("a")
	require.False(t, ok, "oldest entry should have been evicted")
}

func TestPersistenceMirrorsSetAndDelete(t *testing.T) {
	ctx := context.Background()
	ops := make(chan PersistenceOp, 4)
	c, err := New(Config{MaxEntries: 8, Persistence: ops})
	require.NoError(t, err)

	c.Set(ctx, "k", []byte("v"), 0)
	op := <-ops
	require.Equal(t, PersistSet, op.Kind)
	require.Equal(t, "k", op.Key)

	c.Delete(ctx, "k")
	op = <-ops
	require.Equal(t, PersistDelete, op.Kind)
}

func TestPurgeClearsAllEntries(t *testing.T) {
	ctx := context.Background()
	c, err := New(Config{MaxEntries: 8})
	require.NoError(t, err)

	c.Set(ctx, "a", []byte("1"), 0)
	c.Set(ctx, "b", []byte("2"), 0)
	c.Purge()
	require.Equal(t, 0, c.Len())
}

func TestAccessCounterIncrementsOnGet(t *testing.T) {
	ctx := context.Background()
	c, err := New(Config{MaxEntries: 8})
	require.NoError(t, err)

	c.Set(ctx, "k", []byte("v"), 0)
	c.Get("k")
	c.Get("k")
	require.Equal(t, uint64(2), c.AccessCount())
}
