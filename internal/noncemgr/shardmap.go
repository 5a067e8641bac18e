package noncemgr

import (
	"sync"
)

// shardCount is the number of independent shards in the replay cache.
// Writers contend only within a shard, never across the whole map, matching
// spec.md §4.2/§5's "sharded, lock-free map" requirement (lock-free at the
// map level; each shard serializes its own writers with a small mutex,
// since no pack dependency provides a generic concurrent map with atomic
// check-and-insert semantics — see DESIGN.md).
const shardCount = 32

type shard struct {
	mu      sync.Mutex
	entries map[[32]byte]uint64
}

// shardedMap is a tag -> timestamp_ns replay cache, sharded by the first
// byte of the tag.
type shardedMap struct {
	shards [shardCount]*shard
}

func newShardedMap() *shardedMap {
	m := &shardedMap{}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[[32]byte]uint64)}
	}
	return m
}

func (m *shardedMap) shardFor(tag [32]byte) *shard {
	return m.shards[tag[0]%shardCount]
}

// checkAndInsert performs the single atomic replay-check mutation verify
// requires: if tag is absent, insert ts and report "no prior entry". If
// present and still fresh (per isFresh), report replay without mutating. If
// present but stale, overwrite with ts and report "no prior entry".
func (m *shardedMap) checkAndInsert(tag [32]byte, ts uint64, isFresh func(uint64) bool) (replay bool) {
	s := m.shardFor(tag)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.entries[tag]
	if ok && isFresh(prev) {
		return true
	}
	s.entries[tag] = ts
	return false
}

// cleanupExpired removes entries whose timestamp is no longer fresh.
func (m *shardedMap) cleanupExpired(isFresh func(uint64) bool) {
	for _, s := range m.shards {
		s.mu.Lock()
		for tag, ts := range s.entries {
			if !isFresh(ts) {
				delete(s.entries, tag)
			}
		}
		s.mu.Unlock()
	}
}

func (m *shardedMap) len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}
