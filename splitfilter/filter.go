// Package splitfilter implements the split filter of spec.md §4.6: a small
// state machine, derived once per request and updated as results arrive,
// that ranks splits by their ability to still improve the top-K and decides
// whether a split can be pruned outright.
package splitfilter

import "sort"

// Variant is the kind of split filter active for a request.
type Variant int

const (
	Uninformative Variant = iota
	SplitIdHigher
	SplitTimestampHigher
	SplitTimestampLower
	FindTraceIdsAggregation
)

// Split is the subset of a split descriptor the filter needs to order and
// prune splits.
type Split struct {
	SplitID        string
	TimestampStart int64
	TimestampEnd   int64
	HasTimestamps  bool
}

// Request is the subset of a search request the filter needs to pick its
// variant.
type Request struct {
	MaxHits          uint64
	SortFields       []SortField
	AggregationKind  AggregationKind
	TimestampFieldName string
	HasTimestampField  bool
}

type SortOrder int

const (
	SortAsc SortOrder = iota
	SortDesc
)

type SortField struct {
	FieldName string
	Order     SortOrder
}

// AggregationKind classifies the opaque aggregation_request payload just
// enough to recognize the trace-id aggregation special case.
type AggregationKind struct {
	IsFindTraceIds         bool
	SpanTimestampFieldName string
}

// Filter is the CanSplitDoBetter state machine. The zero value is not
// usable; construct with FromRequest.
type Filter struct {
	variant Variant

	// haveSeen is false until at least max_hits hits have been observed,
	// matching the Option<...> state of the Rust enum payloads.
	haveSeen bool

	splitIDBound        string
	timestampHigherBound int64
	timestampLowerBound  int64
}

// FromRequest builds the filter variant for a request, following the table
// in spec.md §4.6.
func FromRequest(req Request) *Filter {
	if req.MaxHits == 0 && req.AggregationKind.IsFindTraceIds &&
		req.HasTimestampField && req.AggregationKind.SpanTimestampFieldName == req.TimestampFieldName {
		return &Filter{variant: FindTraceIdsAggregation}
	}

	if len(req.SortFields) == 0 {
		return &Filter{variant: SplitIdHigher}
	}

	first := req.SortFields[0]
	if req.HasTimestampField && first.FieldName == req.TimestampFieldName {
		if first.Order == SortDesc {
			return &Filter{variant: SplitTimestampHigher}
		}
		return &Filter{variant: SplitTimestampLower}
	}

	return &Filter{variant: Uninformative}
}

// Variant reports which variant this filter is.
func (f *Filter) Variant() Variant {
	return f.variant
}

// OptimizeSplitOrder sorts splits in place so that the splits most likely
// to fill the top-K are tried first, maximizing how many later splits can
// be pruned by CanBeBetter.
func OptimizeSplitOrder(variant Variant, splits []Split) {
	switch variant {
	case SplitIdHigher:
		sort.SliceStable(splits, func(i, j int) bool { return splits[i].SplitID > splits[j].SplitID })
	case SplitTimestampHigher, FindTraceIdsAggregation:
		sort.SliceStable(splits, func(i, j int) bool { return splits[i].TimestampEnd > splits[j].TimestampEnd })
	case SplitTimestampLower:
		sort.SliceStable(splits, func(i, j int) bool { return splits[i].TimestampStart < splits[j].TimestampStart })
	case Uninformative:
		// no-op
	}
}

// CanBeBetter reports whether the given split could still contain documents
// that would displace the current top-K's worst-retained hit.
func (f *Filter) CanBeBetter(split Split) bool {
	if !f.haveSeen {
		return true
	}
	switch f.variant {
	case SplitIdHigher:
		return split.SplitID >= f.splitIDBound
	case SplitTimestampHigher, FindTraceIdsAggregation:
		return split.TimestampEnd >= f.timestampHigherBound
	case SplitTimestampLower:
		return split.TimestampStart <= f.timestampLowerBound
	default:
		return true
	}
}

// RecordNewWorstHit updates the filter's bound from the current worst
// retained hit. Only call this once the merger already holds max_hits
// candidates. hasI64SortValue/i64SortValueNanos carry the hit's sort value
// when it is an i64 nanosecond timestamp; other sort value kinds leave the
// bound untouched, matching the original's silent no-op for non-I64 sort
// values.
func (f *Filter) RecordNewWorstHit(splitID string, hasI64SortValue bool, i64SortValueNanos int64) {
	switch f.variant {
	case Uninformative:
		// no-op
	case SplitIdHigher:
		f.haveSeen = true
		f.splitIDBound = splitID
	case SplitTimestampHigher, FindTraceIdsAggregation:
		if !hasI64SortValue {
			return
		}
		f.haveSeen = true
		// Round up: a hit at 1.5s could still be beaten by one at 1.2s if
		// we rounded down, so we must keep checking splits up to 2s.
		f.timestampHigherBound = divCeil(i64SortValueNanos, 1_000_000_000)
	case SplitTimestampLower:
		if !hasI64SortValue {
			return
		}
		f.haveSeen = true
		// Round down (truncating division): symmetric reasoning for the
		// ascending-timestamp sort direction.
		f.timestampLowerBound = i64SortValueNanos / 1_000_000_000
	}
}

// divCeil computes ceil(a/b) for non-negative a and positive b.
func divCeil(a, b int64) int64 {
	return (a + b - 1) / b
}
