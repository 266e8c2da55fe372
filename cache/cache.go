package cache

import (
	"errors"
	"sync"
)

// ErrTooLarge is returned by Add when a single entry's size exceeds the
// cache's entire budget; no eviction can admit it.
var ErrTooLarge = errors.New("cache: entry exceeds memory budget")

// ReleaseFunc is invoked exactly once for each entry leaving the cache.
// It runs with the cache lock held; keep it fast and never re-enter the
// cache from it.
type ReleaseFunc[K comparable, V any] func(key K, value V)

// Option configures a Memory cache during creation.
type Option[K comparable, V any] func(*Memory[K, V])

// WithRelease sets the release hook called once per departing entry.
func WithRelease[K comparable, V any](release ReleaseFunc[K, V]) Option[K, V] {
	return func(c *Memory[K, V]) {
		c.release = release
	}
}

// Memory is a thread-safe LRU cache bounded by total entry bytes rather
// than entry count.
//
// Memory is safe for concurrent use.
// Memory must not be copied after creation (has mutex).
type Memory[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*entry[K, V]
	lru      *lruList[K]
	capacity int64 // byte budget; 0 means unlimited
	used     int64
	release  ReleaseFunc[K, V]
}

// entry holds a cached value with its reported size and LRU node.
type entry[K comparable, V any] struct {
	value V
	size  int64
	node  *lruNode[K]
}

// NewMemory creates a cache with the given byte budget.
// A capacity of 0 means unlimited.
func NewMemory[K comparable, V any](capacity int64, opts ...Option[K, V]) *Memory[K, V] {
	c := &Memory[K, V]{
		entries:  make(map[K]*entry[K, V]),
		lru:      newLRUList[K](),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a cached value by key, marking it most recently used.
// Returns (value, true) if found, (zero, false) otherwise.
func (c *Memory[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(e.node)
	return e.value, true
}

// Add stores a value with its reported byte size, evicting least-recently-
// used entries until the budget is respected. Adding an existing key
// releases the previous value first. Returns ErrTooLarge when the entry
// alone exceeds the budget; the cache is left unchanged.
func (c *Memory[K, V]) Add(key K, value V, size int64) error {
	if size < 0 {
		size = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity > 0 && size > c.capacity {
		return ErrTooLarge
	}

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}

	if c.capacity > 0 {
		for c.used+size > c.capacity {
			oldest, ok := c.lru.Oldest()
			if !ok {
				break
			}
			c.removeLocked(oldest, c.entries[oldest])
		}
	}

	c.entries[key] = &entry[K, V]{
		value: value,
		size:  size,
		node:  c.lru.PushFront(key),
	}
	c.used += size
	return nil
}

// Remove deletes an entry, releasing its value.
// Returns true if the entry was found and removed.
func (c *Memory[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	return true
}

// Clear releases every entry and empties the cache.
func (c *Memory[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if c.release != nil {
			c.release(key, e.value)
		}
	}
	c.entries = make(map[K]*entry[K, V])
	c.lru.Clear()
	c.used = 0
}

// Len returns the number of entries in the cache.
func (c *Memory[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Used returns the total reported bytes currently cached.
func (c *Memory[K, V]) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Capacity returns the byte budget (0 means unlimited).
func (c *Memory[K, V]) Capacity() int64 {
	return c.capacity
}

// removeLocked unlinks an entry and fires the release hook exactly once.
// The caller must hold c.mu.
func (c *Memory[K, V]) removeLocked(key K, e *entry[K, V]) {
	c.lru.Remove(e.node)
	delete(c.entries, key)
	c.used -= e.size
	if c.release != nil {
		c.release(key, e.value)
	}
}
