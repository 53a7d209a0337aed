package cache

import (
	"sync"
	"sync/atomic"
)

// Cache is a thread-safe LRU cache with a hard entry limit. Values evicted
// or cleared are handed to the eviction callback, which may release the
// GPU objects they own.
//
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*lruNode[K, V]
	lru     lruList[K, V]
	limit   int
	onEvict func(K, V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most limit entries. A limit of 0 means
// unlimited. onEvict may be nil.
func New[K comparable, V any](limit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*lruNode[K, V]),
		limit:   limit,
		onEvict: onEvict,
	}
}

// Get returns the value for key and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	c.lru.MoveToFront(n)
	return n.value, true
}

// GetOrCreate returns the cached value for key or stores the result of
// create. create runs under the lock so a key is never built twice. A
// create error is returned as is and nothing is stored. hit reports
// whether the value was already cached.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (value V, hit bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		c.hits.Add(1)
		c.lru.MoveToFront(n)
		return n.value, true, nil
	}
	c.misses.Add(1)

	value, err = create()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.entries[key] = c.lru.PushFront(key, value)
	for c.limit > 0 && c.lru.Len() > c.limit {
		c.evictOldest()
	}
	return value, false, nil
}

// Delete removes key, calling the eviction callback. It reports whether
// the key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(n)
	delete(c.entries, key)
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
	return true
}

// Clear removes every entry, calling the eviction callback for each.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := c.lru.RemoveOldest(); n != nil; n = c.lru.RemoveOldest() {
		if c.onEvict != nil {
			c.onEvict(n.key, n.value)
		}
	}
	c.entries = make(map[K]*lruNode[K, V])
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[K, V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{
		Len:       c.Len(),
		Capacity:  c.limit,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// evictOldest drops the least recently used entry.
// Caller must hold c.mu.
func (c *Cache[K, V]) evictOldest() {
	n := c.lru.RemoveOldest()
	if n == nil {
		return
	}
	delete(c.entries, n.key)
	c.evictions.Add(1)
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the entry limit, 0 for unlimited.
	Capacity int
	// Hits and Misses count lookups.
	Hits   uint64
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 before the first lookup.
	HitRate float64
	// Evictions counts entries dropped by the limit.
	Evictions uint64
}
