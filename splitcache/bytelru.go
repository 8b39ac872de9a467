// Package splitcache implements the three memory caches layered in front of
// split storage (SPEC_FULL.md C2/C7, plus the shared fast-field byte cache):
// a footer (hotcache) cache, a fast-field byte-range cache, and a leaf
// result cache. All three are bounded by total bytes held, not entry count,
// since a handful of large fast-field ranges can dwarf thousands of small
// footers.
//
// The decorator shape (a cache wrapping a "next" reader, keyed by split
// identity) follows friggdb's disk cache.Reader; unlike that cache, these
// are in-memory and byte-bounded, built on golang-lru's simplelru since an
// LRU here has to evict by a running byte total rather than by raw entry
// count, which the plain lru.Cache does not expose.
package splitcache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// ByteLRU is a byte-budget-bounded LRU cache of opaque byte slices. It is
// safe for concurrent use.
type ByteLRU struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[string, []byte]
	maxBytes  uint64
	curBytes  uint64
	hits      uint64
	misses    uint64
}

// NewByteLRU builds a ByteLRU bounded to maxBytes total. simplelru itself
// only bounds by entry count, so it is constructed with an effectively
// unbounded count and Put drives the real eviction off the running byte
// total instead.
func NewByteLRU(maxBytes uint64) *ByteLRU {
	c := &ByteLRU{maxBytes: maxBytes}
	lru, err := simplelru.NewLRU[string, []byte](1<<31-1, func(key string, value []byte) {
		c.curBytes -= uint64(len(value))
	})
	if err != nil {
		// simplelru.NewLRU only errors on a non-positive size, and the size
		// above is a positive constant.
		panic(err)
	}
	c.lru = lru
	return c
}

// Get returns the cached bytes for key, promoting it to most-recently-used.
func (c *ByteLRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Put inserts value under key, evicting least-recently-used entries until
// the cache is back within its byte budget. A single value larger than the
// entire budget is still stored (eviction cannot make room for it), since
// refusing to cache it would also mean refusing to ever use it as a cache
// hit for subsequent identical requests within its own lifetime.
func (c *ByteLRU) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.curBytes -= uint64(len(old))
	}
	c.curBytes += uint64(len(value))
	c.lru.Add(key, value)

	for c.curBytes > c.maxBytes && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

// Len reports the number of entries currently cached.
func (c *ByteLRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes reports the current total byte usage.
func (c *ByteLRU) Bytes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Stats returns the running hit/miss counters.
func (c *ByteLRU) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
