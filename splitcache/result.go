package splitcache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	farm "github.com/dgryski/go-farm"
)

// ResultCacheKey identifies a previously-computed per-split leaf result: the
// split it was computed against, and a fingerprint of the exact rewritten
// request that produced it (C7 in SPEC_FULL.md). Two requests that rewrite
// to the same AST and the same sort/limit parameters are interchangeable
// regardless of how their original, unrewritten AST looked.
type ResultCacheKey struct {
	SplitID          string
	RewrittenASTJSON string
	MaxHits          uint64
	SortFieldsJSON   string
	AggregationJSON  string
}

// fingerprint collapses a ResultCacheKey into a single cache key string
// using a 64-bit fingerprint of its fields, the same hashing primitive the
// point-lookup fast path uses, rather than keying the cache directly off
// the (potentially large) rewritten AST JSON.
func (k ResultCacheKey) fingerprint() string {
	var buf []byte
	buf = append(buf, k.SplitID...)
	buf = append(buf, 0)
	buf = append(buf, k.RewrittenASTJSON...)
	buf = append(buf, 0)
	var hitsBytes [8]byte
	binary.LittleEndian.PutUint64(hitsBytes[:], k.MaxHits)
	buf = append(buf, hitsBytes[:]...)
	buf = append(buf, k.SortFieldsJSON...)
	buf = append(buf, 0)
	buf = append(buf, k.AggregationJSON...)

	h := farm.Hash64(buf)
	return fmt.Sprintf("result:%s:%016x", k.SplitID, h)
}

// ResultCache caches a whole split's leaf search response, short-circuiting
// the entire open/warmup/execute pipeline for a repeated identical
// sub-request (e.g. a dashboard re-running the same panel query).
type ResultCache struct {
	bytes *ByteLRU
}

// NewResultCache builds a ResultCache bounded to maxBytes total serialized
// response bytes.
func NewResultCache(maxBytes uint64) *ResultCache {
	return &ResultCache{bytes: NewByteLRU(maxBytes)}
}

// Get returns the cached response for key, if any. The caller is
// responsible for unmarshaling it into whatever per-split response type it
// uses; ResultCache only stores opaque bytes to avoid this package
// depending on the root package's response type.
func (c *ResultCache) Get(key ResultCacheKey) ([]byte, bool) {
	return c.bytes.Get(key.fingerprint())
}

// Put stores the already-serialized value under key as is; PutJSON is the
// variant that marshals to JSON first.
func (c *ResultCache) Put(key ResultCacheKey, value []byte) {
	c.bytes.Put(key.fingerprint(), value)
}

// PutJSON is a convenience wrapper for callers that want to cache a
// value.(json.Marshal)-able response directly.
func (c *ResultCache) PutJSON(key ResultCacheKey, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("result cache: marshal: %w", err)
	}
	c.Put(key, b)
	return nil
}

// Stats returns the running hit/miss counters.
func (c *ResultCache) Stats() (hits, misses uint64) {
	return c.bytes.Stats()
}
