// Package index defines the narrow contracts the leaf executor needs
// against an opened split: enough to warm up exactly the on-disk structures
// a query will touch, then run the query against the already-warmed data.
// This module has no concrete implementation: callers supply one through
// bundle.SearcherFactory; tests use the in-memory Fake in this package.
package index

import "context"

// Searcher is an opened split, ready to be warmed up and searched. All
// methods must be safe for concurrent use by the warmup fan-out.
type Searcher interface {
	SegmentReaders() []SegmentReader
	FastFields() FastFieldReader

	// Search runs query against the already-warmed split, accumulating
	// matches into the caller's collector. Search must not touch
	// storage itself: every byte range it needs must already be resident,
	// or it returns an error rather than blocking on IO.
	Search(ctx context.Context, query Query, collector Collector) error
}

// SegmentReader exposes one segment's inverted index and fieldnorms.
type SegmentReader interface {
	InvertedIndex(field string) (InvertedIndex, error)
	FieldNorms(field string) (FieldNormReader, error)
}

// InvertedIndex is a single field's posting lists and term dictionary
// within one segment.
type InvertedIndex interface {
	// WarmUpDictionary loads the term dictionary into memory, needed when
	// the query must enumerate terms it cannot name in advance (e.g. a
	// terms aggregation).
	WarmUpDictionary(ctx context.Context) error

	// WarmUpPostingsForTerms loads posting lists for exactly the given
	// terms. needPositions also loads position data, needed for phrase
	// queries.
	WarmUpPostingsForTerms(ctx context.Context, terms []Term, needPositions bool) error

	// WarmUpPostingsForTermRanges loads posting lists for every term
	// within the given ranges, capped at limit terms per range if limit is
	// non-zero. needPositions mirrors WarmUpPostingsForTerms.
	WarmUpPostingsForTermRanges(ctx context.Context, ranges []TermRange, needPositions bool, limit uint64) error

	// WarmUpPostingsFull loads every posting list for the field. Used when
	// term_dict_fields names a field whose term set cannot be narrowed in
	// advance.
	WarmUpPostingsFull(ctx context.Context, needPositions bool) error
}

// Term is a single posting-list lookup key: a field's term, encoded as the
// caller's index already encodes it (e.g. tokenized text, or a binary-coded
// numeric value).
type Term struct {
	Field string
	Value []byte
}

// TermRange is a bounded or unbounded scan over a field's term dictionary.
type TermRange struct {
	Field      string
	LowerBound Bound
	UpperBound Bound
}

// BoundKind mirrors queryast.BoundKind without importing it, to keep index
// free of a dependency on the AST package.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

// Bound is a single-sided range endpoint over raw term bytes.
type Bound struct {
	Kind  BoundKind
	Value []byte
}

// FastFieldReader exposes a split's columnar fast fields.
type FastFieldReader interface {
	// ListDynamicColumnHandles returns the handles backing fieldName; a
	// dynamically-typed fast field can resolve to more than one physical
	// column (e.g. one per encountered JSON type).
	ListDynamicColumnHandles(ctx context.Context, fieldName string) ([]ColumnHandle, error)
}

// ColumnHandle is a warmable handle to one physical fast-field column.
type ColumnHandle interface {
	ReadBytesAsync(ctx context.Context) error
}

// FieldNormReader exposes per-document field norms, used by scoring
// collectors.
type FieldNormReader interface {
	WarmUp(ctx context.Context) error
}

// Query is the already-rewritten, already-parsed query ready to execute
// against a segment.
type Query interface{}

// Collector accumulates search results across segments.
type Collector interface{}
