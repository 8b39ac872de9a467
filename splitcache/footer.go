package splitcache

import (
	"context"
	"fmt"

	"github.com/LessThanGreaterThan/quickwit/storage"
)

// FooterCache caches each split's hotcache footer: a small trailer holding
// the serialized directory needed to open the rest of the split without
// re-deriving it, shared across every search that opens the same split
// (C2 in SPEC_FULL.md).
type FooterCache struct {
	bytes *ByteLRU
}

// NewFooterCache builds a FooterCache bounded to maxBytes total footer
// bytes.
func NewFooterCache(maxBytes uint64) *FooterCache {
	return &FooterCache{bytes: NewByteLRU(maxBytes)}
}

// GetOrFetch returns splitID's footer bytes, fetching them via reader from
// path/footerRange on a cache miss.
func (c *FooterCache) GetOrFetch(ctx context.Context, reader storage.Reader, splitID, path string, footerRange storage.ByteRange) ([]byte, error) {
	key := footerKey(splitID)
	if b, ok := c.bytes.Get(key); ok {
		return b, nil
	}
	b, err := reader.GetSlice(ctx, path, footerRange)
	if err != nil {
		return nil, fmt.Errorf("footer cache: fetch %s: %w", splitID, err)
	}
	c.bytes.Put(key, b)
	return b, nil
}

// Stats returns the running hit/miss counters.
func (c *FooterCache) Stats() (hits, misses uint64) {
	return c.bytes.Stats()
}

func footerKey(splitID string) string {
	return "footer:" + splitID
}
