package index

import (
	"context"
	"fmt"
	"sync"
)

// FakeSearcher is an in-memory Searcher for tests: it records every warmup
// call it receives so a test can assert the planner only asked for what the
// query actually needs.
type FakeSearcher struct {
	mu       sync.Mutex
	segments []*FakeSegmentReader
	fast     *FakeFastFieldReader

	SearchFunc func(ctx context.Context, query Query, collector Collector) error
}

// NewFakeSearcher builds a FakeSearcher with numSegments identical segments.
func NewFakeSearcher(numSegments int) *FakeSearcher {
	s := &FakeSearcher{fast: NewFakeFastFieldReader()}
	for i := 0; i < numSegments; i++ {
		s.segments = append(s.segments, NewFakeSegmentReader())
	}
	return s
}

func (s *FakeSearcher) SegmentReaders() []SegmentReader {
	out := make([]SegmentReader, len(s.segments))
	for i, seg := range s.segments {
		out[i] = seg
	}
	return out
}

func (s *FakeSearcher) FastFields() FastFieldReader { return s.fast }

func (s *FakeSearcher) Search(ctx context.Context, query Query, collector Collector) error {
	if s.SearchFunc != nil {
		return s.SearchFunc(ctx, query, collector)
	}
	return nil
}

// WarmedDictionaries returns the fields whose term dictionary was warmed,
// across all segments, for assertions in tests.
func (s *FakeSearcher) WarmedDictionaries() []string {
	var out []string
	seen := make(map[string]bool)
	for _, seg := range s.segments {
		for field, idx := range seg.inverted {
			if idx.dictWarmed && !seen[field] {
				seen[field] = true
				out = append(out, field)
			}
		}
	}
	return out
}

// FakeSegmentReader is an in-memory SegmentReader.
type FakeSegmentReader struct {
	mu       sync.Mutex
	inverted map[string]*FakeInvertedIndex
	norms    map[string]*FakeFieldNormReader
}

func NewFakeSegmentReader() *FakeSegmentReader {
	return &FakeSegmentReader{
		inverted: make(map[string]*FakeInvertedIndex),
		norms:    make(map[string]*FakeFieldNormReader),
	}
}

func (s *FakeSegmentReader) InvertedIndex(field string) (InvertedIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.inverted[field]
	if !ok {
		idx = &FakeInvertedIndex{}
		s.inverted[field] = idx
	}
	return idx, nil
}

func (s *FakeSegmentReader) FieldNorms(field string) (FieldNormReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn, ok := s.norms[field]
	if !ok {
		fn = &FakeFieldNormReader{}
		s.norms[field] = fn
	}
	return fn, nil
}

// FakeInvertedIndex records which warmup calls it received.
type FakeInvertedIndex struct {
	mu sync.Mutex

	dictWarmed    bool
	termsWarmed   []Term
	rangesWarmed  []TermRange
	fullWarmed    bool
	positionsUsed bool

	FailWith error
}

func (i *FakeInvertedIndex) WarmUpDictionary(ctx context.Context) error {
	if i.FailWith != nil {
		return i.FailWith
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dictWarmed = true
	return nil
}

func (i *FakeInvertedIndex) WarmUpPostingsForTerms(ctx context.Context, terms []Term, needPositions bool) error {
	if i.FailWith != nil {
		return i.FailWith
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.termsWarmed = append(i.termsWarmed, terms...)
	i.positionsUsed = i.positionsUsed || needPositions
	return nil
}

func (i *FakeInvertedIndex) WarmUpPostingsForTermRanges(ctx context.Context, ranges []TermRange, needPositions bool, limit uint64) error {
	if i.FailWith != nil {
		return i.FailWith
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rangesWarmed = append(i.rangesWarmed, ranges...)
	i.positionsUsed = i.positionsUsed || needPositions
	return nil
}

func (i *FakeInvertedIndex) WarmUpPostingsFull(ctx context.Context, needPositions bool) error {
	if i.FailWith != nil {
		return i.FailWith
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.fullWarmed = true
	i.positionsUsed = i.positionsUsed || needPositions
	return nil
}

// FakeFieldNormReader is an in-memory FieldNormReader.
type FakeFieldNormReader struct {
	mu     sync.Mutex
	warmed bool
}

func (f *FakeFieldNormReader) WarmUp(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmed = true
	return nil
}

// FakeFastFieldReader is an in-memory FastFieldReader.
type FakeFastFieldReader struct {
	mu      sync.Mutex
	columns map[string][]*FakeColumnHandle
}

func NewFakeFastFieldReader() *FakeFastFieldReader {
	return &FakeFastFieldReader{columns: make(map[string][]*FakeColumnHandle)}
}

// AddColumn registers a column handle under fieldName, as if the split's
// schema had resolved a dynamic fast field to a physical column.
func (f *FakeFastFieldReader) AddColumn(fieldName string) *FakeColumnHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	col := &FakeColumnHandle{}
	f.columns[fieldName] = append(f.columns[fieldName], col)
	return col
}

func (f *FakeFastFieldReader) ListDynamicColumnHandles(ctx context.Context, fieldName string) ([]ColumnHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cols, ok := f.columns[fieldName]
	if !ok {
		return nil, fmt.Errorf("index: unknown fast field %q", fieldName)
	}
	out := make([]ColumnHandle, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out, nil
}

// FakeColumnHandle is an in-memory ColumnHandle.
type FakeColumnHandle struct {
	mu     sync.Mutex
	warmed bool

	FailWith error
}

func (c *FakeColumnHandle) ReadBytesAsync(ctx context.Context) error {
	if c.FailWith != nil {
		return c.FailWith
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmed = true
	return nil
}
