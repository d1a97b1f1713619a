// Package cache provides a small generic LRU cache with per-entry TTL.
// The engine uses it twice: to memoize query embeddings and to serve
// repeated questions without re-running retrieval and generation.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a fixed-capacity LRU cache whose entries expire after a TTL.
// A zero TTL disables expiry. Safe for concurrent use.
type Cache[V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List

	hits   uint64
	misses uint64
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
}

// New creates a cache holding at most capacity entries, each valid for ttl.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	ent := elem.Value.(*entry[V])
	if !ent.expires.IsZero() && c.now().After(ent.expires) {
		c.lru.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return zero, false
	}
	c.lru.MoveToFront(elem)
	c.hits++
	return ent.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.expires = expires
		return
	}

	elem := c.lru.PushFront(&entry[V]{key: key, value: value, expires: expires})
	c.entries[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[V]).key)
		}
	}
}

// Len returns the number of entries currently held, including any expired
// entries not yet evicted by a Get.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
