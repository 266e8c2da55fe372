// Package cache provides a generic, thread-safe, byte-budget LRU cache.
//
// Unlike a count-limited cache, Memory tracks the byte size reported for
// each entry and evicts least-recently-used entries until the configured
// budget is respected. An optional release hook is invoked exactly once for
// every entry that leaves the cache, whether by eviction, deletion, or
// Clear:
//
//	c := cache.NewMemory[string, []byte](64<<20,
//	    cache.WithRelease[string, []byte](func(k string, v []byte) {
//	        // return v to a pool, close it, etc.
//	    }))
//	c.Add("key", data, int64(len(data)))
//	value, ok := c.Get("key")
package cache
