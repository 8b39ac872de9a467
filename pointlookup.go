package leafsearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/LessThanGreaterThan/quickwit/recordindex"
	"github.com/LessThanGreaterThan/quickwit/splitcache"
	"github.com/LessThanGreaterThan/quickwit/storage"
)

// ErrDocumentNotFound is returned when a point lookup's id is not present in
// any of the searched splits.
var ErrDocumentNotFound = errors.New("leafsearch: document not found")

// PointLookupSplit is the subset of a split's metadata the point-lookup fast
// path needs: where its bloom filter and record index live, and the ID
// range it covers, so a lookup can skip splits that provably don't hold id
// without reading anything from them (C10 in SPEC_FULL.md).
type PointLookupSplit struct {
	SplitID      string
	DataFileName string

	MinID, MaxID []byte

	// HasBloom is false for a split built before bloom filters were added to
	// its footer. Such a split is searched by reading its full record index
	// and binary-searching it directly, skipping the bloom prefilter stage
	// rather than refusing the lookup outright.
	HasBloom   bool
	BloomRange storage.ByteRange

	RecordIndexRange storage.ByteRange
}

// inRange reports whether id falls within [MinID, MaxID] inclusive.
func (s PointLookupSplit) inRange(id []byte) bool {
	return bytes.Compare(id, s.MinID) >= 0 && bytes.Compare(id, s.MaxID) <= 0
}

// PointLookupMetrics accounts for the bytes and round-trips a lookup spent,
// mirroring friggdb's FindMetrics.
type PointLookupMetrics struct {
	BloomFilterReads     int32
	BloomFilterBytesRead int32
	IndexReads           int32
	IndexBytesRead       int32
	DocumentReads        int32
	DocumentBytesRead    int32
}

// PointLookupExecutor resolves a document ID directly to its bytes via each
// candidate split's bloom filter and record index, bypassing the inverted
// index and the leaf executor's query/warmup/search pipeline entirely.
// Adapted from friggdb.readerWriter.Find (friggdb/friggdb.go).
type PointLookupExecutor struct {
	storage storage.Reader
	bytes   *splitcache.FastFieldCache
}

// NewPointLookupExecutor builds a PointLookupExecutor. bytesCache is reused
// from the leaf executor's fast-field cache: a split's bloom filter and
// record index are small, read-mostly sidecar data, exactly the access
// pattern that cache already serves.
func NewPointLookupExecutor(reader storage.Reader, bytesCache *splitcache.FastFieldCache) *PointLookupExecutor {
	return &PointLookupExecutor{storage: reader, bytes: bytesCache}
}

// LookupByID searches every split in splits whose [MinID, MaxID] range could
// hold id, in parallel, and returns the first match found. Splits outside
// id's range are skipped without any IO, matching the MinID/MaxID blocklist
// filter in friggdb.Find. A candidate split with no bloom filter is searched
// by its record index alone, the same degradation friggdb.Find falls back to
// when a block's bloom filter is missing.
func (e *PointLookupExecutor) LookupByID(ctx context.Context, id []byte, splits []PointLookupSplit) ([]byte, PointLookupMetrics, error) {
	var candidates []PointLookupSplit
	for _, s := range splits {
		if s.inRange(id) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, PointLookupMetrics{}, ErrDocumentNotFound
	}

	type outcome struct {
		doc []byte
		err error
	}

	var metrics PointLookupMetrics
	outcomes := make([]outcome, len(candidates))
	var wg sync.WaitGroup
	for i, split := range candidates {
		i, split := i, split
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := e.lookupInSplit(ctx, split, id, &metrics)
			outcomes[i] = outcome{doc: doc, err: err}
		}()
	}
	wg.Wait()

	// Every split is searched (this module has no per-document "most
	// recent wins" ordering to exploit), but candidates are still reported
	// in the caller's original order: the first split that actually
	// resolved id wins ties, matching a deterministic scan over the
	// blocklist rather than whichever goroutine happened to finish first.
	var firstErr error
	for _, o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		if o.doc != nil {
			return o.doc, metrics, nil
		}
	}
	if firstErr != nil {
		return nil, metrics, firstErr
	}
	return nil, metrics, ErrDocumentNotFound
}

// lookupInSplit runs the bloom-then-index-then-read sequence against one
// split. A nil, nil return means id is provably or conclusively absent from
// this split; both are treated identically by the caller.
func (e *PointLookupExecutor) lookupInSplit(ctx context.Context, split PointLookupSplit, id []byte, metrics *PointLookupMetrics) ([]byte, error) {
	if split.HasBloom {
		bloomBytes, err := e.bytes.GetOrFetch(ctx, e.storage, split.SplitID, split.DataFileName, split.BloomRange)
		if err != nil {
			return nil, wrapSplitError(split.SplitID, fmt.Errorf("read bloom filter: %w", err))
		}
		atomic.AddInt32(&metrics.BloomFilterReads, 1)
		atomic.AddInt32(&metrics.BloomFilterBytesRead, int32(len(bloomBytes)))

		filter := recordindex.UnmarshalFilter(bloomBytes)
		if !filter.MightContain(id) {
			return nil, nil
		}
	}

	indexBytes, err := e.bytes.GetOrFetch(ctx, e.storage, split.SplitID, split.DataFileName, split.RecordIndexRange)
	if err != nil {
		return nil, wrapSplitError(split.SplitID, fmt.Errorf("read record index: %w", err))
	}
	atomic.AddInt32(&metrics.IndexReads, 1)
	atomic.AddInt32(&metrics.IndexBytesRead, int32(len(indexBytes)))

	records, err := recordindex.UnmarshalRecords(indexBytes)
	if err != nil {
		return nil, wrapSplitError(split.SplitID, fmt.Errorf("decode record index: %w", err))
	}

	record, ok := recordindex.FindRecord(id, records)
	if !ok {
		return nil, nil
	}

	docBytes, err := e.storage.GetSlice(ctx, split.DataFileName, storage.ByteRange{
		Start: record.Start,
		End:   record.Start + uint64(record.Length),
	})
	if err != nil {
		return nil, wrapSplitError(split.SplitID, fmt.Errorf("read document: %w", err))
	}
	atomic.AddInt32(&metrics.DocumentReads, 1)
	atomic.AddInt32(&metrics.DocumentBytesRead, int32(len(docBytes)))

	return docBytes, nil
}
