package leafsearch

import (
	"fmt"

	"github.com/google/uuid"
)

// SplitDescriptor identifies a split and its footer location within a larger
// bundle file. Splits are immutable; a descriptor is a value type safe to
// copy and share across goroutines.
type SplitDescriptor struct {
	SplitID     string
	FooterStart uint64
	FooterEnd   uint64

	// TimestampStart and TimestampEnd are the inclusive seconds-since-epoch
	// range covered by the split. Either both are set, or neither is
	// (enforced by Validate).
	TimestampStart *int64
	TimestampEnd   *int64
}

// Validate checks the split descriptor invariants from spec.md §3.
func (s SplitDescriptor) Validate() error {
	if (s.TimestampStart == nil) != (s.TimestampEnd == nil) {
		return fmt.Errorf("split %s: timestamp bounds must both be present or both absent", s.SplitID)
	}
	if s.TimestampStart != nil && *s.TimestampStart > *s.TimestampEnd {
		return fmt.Errorf("split %s: timestamp_start %d > timestamp_end %d", s.SplitID, *s.TimestampStart, *s.TimestampEnd)
	}
	if s.FooterEnd < s.FooterStart {
		return fmt.Errorf("split %s: footer_end %d < footer_start %d", s.SplitID, s.FooterEnd, s.FooterStart)
	}
	return nil
}

// SplitFileName returns the name of the bundle file holding this split's
// payload and footer.
func (s SplitDescriptor) SplitFileName() string {
	return s.SplitID + ".split"
}

// NewSplitID mints a fresh split identifier. This package never creates
// splits itself (they arrive already sealed from an external indexing
// pipeline, per spec.md §1's non-goals), so the only caller of this is test
// fixtures and tooling that needs a unique SplitID, the same role
// uuid.UUID plays for backend.BlockMeta.BlockID in friggdb.
func NewSplitID() string {
	return uuid.NewString()
}

// SortOrder is the direction of a sort field.
type SortOrder int

const (
	SortAsc SortOrder = iota
	SortDesc
)

// SortField is one entry of a request's ordered sort sequence.
type SortField struct {
	FieldName string
	Order     SortOrder
}

// CountHits selects whether the leaf must compute an exact total hit count.
type CountHits int

const (
	// CountAll requires every candidate split to be visited so the total
	// hit count is exact.
	CountAll CountHits = iota
	// Underestimate allows the leaf to stop early once the top-K is
	// provably final; the returned count is a lower bound.
	Underestimate
)

// SearchRequest carries the fields of an incoming request relevant to leaf
// execution. QueryAST is transmitted as opaque JSON, matching the wire
// format in spec.md §6; it is parsed lazily by the query-rewrite and
// execution paths.
type SearchRequest struct {
	QueryASTJSON string

	MaxHits     uint64
	StartOffset uint64

	SortFields []SortField

	// StartTimestamp and EndTimestamp are the request-level time window in
	// seconds since the epoch: start inclusive, end exclusive.
	StartTimestamp *int64
	EndTimestamp   *int64

	// AggregationRequestJSON is an opaque aggregation spec, or empty if the
	// request carries none.
	AggregationRequestJSON string

	CountHits CountHits
}

// Clone returns a deep-enough copy of the request that a per-split mutation
// (§4.5 rewrites, §4.8 step 5.a's max_hits=0 override) does not leak across
// splits sharing the original.
func (r SearchRequest) Clone() SearchRequest {
	clone := r
	if len(r.SortFields) > 0 {
		clone.SortFields = append([]SortField(nil), r.SortFields...)
	}
	if r.StartTimestamp != nil {
		v := *r.StartTimestamp
		clone.StartTimestamp = &v
	}
	if r.EndTimestamp != nil {
		v := *r.EndTimestamp
		clone.EndTimestamp = &v
	}
	return clone
}

// SortValue is the sort key attached to a partial hit. Only the I64 variant
// (nanosecond timestamps) participates in split-filter bound tracking; other
// kinds are opaque to this package.
type SortValue struct {
	HasI64 bool
	I64    int64
}

// PartialHit identifies a single matching document without materializing it.
type PartialHit struct {
	SplitID   string
	Segment   uint32
	Doc       uint32
	SortValue SortValue
}

// SplitSearchError is a per-split failure recorded alongside whatever
// partial results were produced by the other splits (spec.md §7).
type SplitSearchError struct {
	SplitID   string
	Message   string
	Retryable bool
}

// LeafSearchResponse is the merged partial result returned by the leaf.
type LeafSearchResponse struct {
	Hits []PartialHit

	// AggregationJSON is opaque intermediate aggregation state, merged
	// additively across splits and sealed on Finalize.
	AggregationJSON string

	// NumHits is exact iff the request's CountHits was CountAll.
	NumHits uint64

	Failures []SplitSearchError
}
