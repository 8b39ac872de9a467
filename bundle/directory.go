// Package bundle implements the split bundle opener (C3 in SPEC_FULL.md):
// the virtual directory layering that sits between a split's storage.Reader
// and the index.Searcher a query actually runs against. It composes the
// footer (hotcache) cache, a per-open ephemeral unbounded cache for bytes
// read more than once within a single search, and the shared fast-field
// byte-range cache, mirroring quickwit's layering of CachingDirectory over
// HotDirectory over the raw storage directory.
package bundle

import (
	"context"
	"fmt"
	"sync"

	"github.com/LessThanGreaterThan/quickwit/splitcache"
	"github.com/LessThanGreaterThan/quickwit/storage"
)

// Directory is a byte-range source for one opened split: every read a
// query issues against the split's data (postings, fast fields, term
// dictionaries, ...) goes through it, so it is the single point at which
// caching is applied.
type Directory struct {
	reader  storage.Reader
	path    string
	splitID string

	ephemeral map[string][]byte
	ephMu     sync.Mutex

	fastFields *splitcache.FastFieldCache
}

// newDirectory builds a Directory over reader/path for one split. ephemeral
// is a fresh, per-open unbounded cache: a query that reads the same byte
// range twice within one search (e.g. a shared term dictionary block)
// should not re-issue the storage read, but that cache must not outlive the
// search, unlike the shared fast-field cache.
func newDirectory(reader storage.Reader, splitID, path string, fastFields *splitcache.FastFieldCache) *Directory {
	return &Directory{
		reader:     reader,
		path:       path,
		splitID:    splitID,
		ephemeral:  make(map[string][]byte),
		fastFields: fastFields,
	}
}

// ReadRange reads byteRange, through the ephemeral per-open cache.
func (d *Directory) ReadRange(ctx context.Context, byteRange storage.ByteRange) ([]byte, error) {
	key := fmt.Sprintf("%d-%d", byteRange.Start, byteRange.End)

	d.ephMu.Lock()
	if b, ok := d.ephemeral[key]; ok {
		d.ephMu.Unlock()
		return b, nil
	}
	d.ephMu.Unlock()

	b, err := d.reader.GetSlice(ctx, d.path, byteRange)
	if err != nil {
		return nil, fmt.Errorf("bundle: read range %s: %w", d.splitID, err)
	}

	d.ephMu.Lock()
	d.ephemeral[key] = b
	d.ephMu.Unlock()
	return b, nil
}

// ReadFastField reads byteRange through the shared, cross-search
// fast-field cache rather than the per-open ephemeral one, since fast-field
// data (sort/aggregation columns) is disproportionately likely to be
// re-read by the next request against the same split.
func (d *Directory) ReadFastField(ctx context.Context, byteRange storage.ByteRange) ([]byte, error) {
	return d.fastFields.GetOrFetch(ctx, d.reader, d.splitID, d.path, byteRange)
}
