package bundle

import (
	"context"
	"fmt"

	"github.com/LessThanGreaterThan/quickwit/index"
	"github.com/LessThanGreaterThan/quickwit/splitcache"
	"github.com/LessThanGreaterThan/quickwit/storage"
)

// SearcherFactory builds an index.Searcher from an opened split's footer
// bytes (the split's hotcache-style directory trailer) and the Directory
// that will serve every further byte-range read the searcher issues. It is
// injected rather than hard-coded because interpreting the footer bytes is
// inherently format-specific (segment layout, fast-field column index,
// ...); bundle itself only owns the caching/layering around that format.
type SearcherFactory func(ctx context.Context, dir *Directory, footerBytes []byte) (index.Searcher, error)

// Bundle is one opened split: its Searcher, ready to be warmed up and
// queried, plus the Directory every warmup/search byte read flows through.
type Bundle struct {
	Searcher  index.Searcher
	Directory *Directory
}

// Open fetches splitID's footer (through footerCache) and builds a Bundle
// around it, wiring fastFieldCache into the returned Directory so that
// subsequent fast-field reads during warmup/search are shared across
// searches hitting the same split.
func Open(
	ctx context.Context,
	reader storage.Reader,
	splitID, path string,
	footerRange storage.ByteRange,
	footerCache *splitcache.FooterCache,
	fastFieldCache *splitcache.FastFieldCache,
	factory SearcherFactory,
) (*Bundle, error) {
	footerBytes, err := footerCache.GetOrFetch(ctx, reader, splitID, path, footerRange)
	if err != nil {
		return nil, fmt.Errorf("bundle: open %s: %w", splitID, err)
	}

	dir := newDirectory(reader, splitID, path, fastFieldCache)
	searcher, err := factory(ctx, dir, footerBytes)
	if err != nil {
		return nil, fmt.Errorf("bundle: build searcher for %s: %w", splitID, err)
	}

	return &Bundle{Searcher: searcher, Directory: dir}, nil
}
