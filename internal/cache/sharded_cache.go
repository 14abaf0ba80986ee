package cache

import (
	"hash/maphash"
	"sync"
	"time"
)

const defaultShards = 16

// entry stores a cached value and its absolute expiration timestamp.
type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
}

// ShardedCache is a map-backed cache split into independently locked shards,
// so operations on unrelated keys never wait on each other.
// Expiration is lazy: a Get on an expired key is a miss, and PurgeExpired
// reclaims the memory.
type ShardedCache[V any] struct {
	shards []*shard[V]
	seed   maphash.Seed
	ttl    time.Duration
	now    func() time.Time
}

// Options controls construction of a ShardedCache.
type Options struct {
	// TTL applies to every entry. Zero or negative means entries never expire.
	TTL time.Duration

	// Shards is the number of lock partitions. Defaults to 16.
	Shards int

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// New constructs a ShardedCache with the given options.
func New[V any](opts Options) *ShardedCache[V] {
	n := opts.Shards
	if n <= 0 {
		n = defaultShards
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	shards := make([]*shard[V], n)
	for i := range shards {
		shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}

	return &ShardedCache[V]{
		shards: shards,
		seed:   maphash.MakeSeed(),
		ttl:    opts.TTL,
		now:    now,
	}
}

// TTL returns the time-to-live applied to new entries.
func (c *ShardedCache[V]) TTL() time.Duration {
	return c.ttl
}

func (c *ShardedCache[V]) shardFor(key string) *shard[V] {
	h := maphash.String(c.seed, key)
	return c.shards[h%uint64(len(c.shards))]
}

// Get implements Cache.Get.
func (c *ShardedCache[V]) Get(key string) (V, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero V
	e, ok := s.items[key]
	if !ok || e.expired(c.now()) {
		return zero, false
	}
	return e.value, true
}

// Set implements Cache.Set.
func (c *ShardedCache[V]) Set(key string, value V) {
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[V]{
		value:     value,
		expiresAt: exp,
	}
}

// Len implements Cache.Len. It counts only non-expired entries.
func (c *ShardedCache[V]) Len() int {
	now := c.now()
	count := 0
	for _, s := range c.shards {
		s.mu.RLock()
		for _, e := range s.items {
			if !e.expired(now) {
				count++
			}
		}
		s.mu.RUnlock()
	}
	return count
}

// PurgeExpired implements Cache.PurgeExpired.
func (c *ShardedCache[V]) PurgeExpired() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.expired(now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Ensure ShardedCache implements Cache at compile time.
var _ Cache[any] = (*ShardedCache[any])(nil)
