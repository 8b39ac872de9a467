package splitcache

import (
	"context"
	"fmt"

	"github.com/LessThanGreaterThan/quickwit/storage"
)

// FastFieldCache caches byte ranges read out of a split's fast-field
// (columnar) data, keyed by split, file path within the split, and byte
// range. It is shared across concurrent searches hitting the same hot
// split, so a popular sort or aggregation field's bytes are fetched once
// per split per cache lifetime rather than once per request.
type FastFieldCache struct {
	bytes *ByteLRU
}

// NewFastFieldCache builds a FastFieldCache bounded to maxBytes total.
func NewFastFieldCache(maxBytes uint64) *FastFieldCache {
	return &FastFieldCache{bytes: NewByteLRU(maxBytes)}
}

// GetOrFetch returns the bytes in byteRange of path within splitID, fetching
// them via reader on a cache miss.
func (c *FastFieldCache) GetOrFetch(ctx context.Context, reader storage.Reader, splitID, path string, byteRange storage.ByteRange) ([]byte, error) {
	key := fastFieldKey(splitID, path, byteRange)
	if b, ok := c.bytes.Get(key); ok {
		return b, nil
	}
	b, err := reader.GetSlice(ctx, path, byteRange)
	if err != nil {
		return nil, fmt.Errorf("fast field cache: fetch %s %s: %w", splitID, path, err)
	}
	c.bytes.Put(key, b)
	return b, nil
}

// Stats returns the running hit/miss counters.
func (c *FastFieldCache) Stats() (hits, misses uint64) {
	return c.bytes.Stats()
}

func fastFieldKey(splitID, path string, byteRange storage.ByteRange) string {
	return fmt.Sprintf("ff:%s:%s:%d-%d", splitID, path, byteRange.Start, byteRange.End)
}
