// Package merge implements the incremental merger of spec.md §4.9: it
// streams per-split leaf responses into a bounded top-K heap plus an
// additively-accumulated aggregation state, in the presence of concurrent
// producers (the leaf executor's per-split goroutines).
package merge

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// SortMode selects how PartialHits are ranked, mirroring the sort key column
// of spec.md §4.6's split-filter table.
type SortMode int

const (
	// BySplitIDDesc is used when the request carries no explicit sort
	// field: ties are broken and ranking is purely by split_id descending.
	BySplitIDDesc SortMode = iota
	BySortValueDesc
	BySortValueAsc
)

// PartialHit identifies a single matching document without materializing
// it, with an optional attached sort value (spec.md §3).
type PartialHit struct {
	SplitID   string
	Segment   uint32
	Doc       uint32
	HasSortValue bool
	SortValue    int64
}

// SplitSearchError is a per-split failure recorded alongside the merged
// response (spec.md §7).
type SplitSearchError struct {
	SplitID   string
	Message   string
	Retryable bool
}

// Response is a single split's contribution: some hits, plus an opaque
// aggregation intermediate state.
type Response struct {
	Hits            []PartialHit
	AggregationJSON string
	NumHits         uint64
}

// Result is the merger's sealed output.
type Result struct {
	Hits            []PartialHit
	AggregationJSON string
	NumHits         uint64
	Failures        []SplitSearchError
}

// Merger is the IncrementalMerger of spec.md §4.9. It is safe for concurrent
// use: AddSplit/AddFailedSplit/PeekWorstHit all take the single internal
// lock, matching spec.md §5's "two mutexes only" design (this is one of
// them; the other lives in splitfilter and is locked separately by the leaf
// executor).
type Merger struct {
	mu sync.Mutex

	maxHits uint64
	mode    SortMode

	heap heapSlice

	aggregation map[string]float64
	hasAggregation bool

	numHits  uint64
	failures []SplitSearchError
}

// New constructs a Merger bounded to maxHits candidates, ranking hits by
// mode.
func New(maxHits uint64, mode SortMode) *Merger {
	return &Merger{
		maxHits: maxHits,
		mode:    mode,
	}
}

// AddSplit folds one split's response into the merger. It never returns an
// error for malformed hit data (there is none to malform); a malformed
// aggregation payload is reported so the caller can turn it into a
// SplitSearchError for that split, per spec.md §4.8 step 5.e.
func (m *Merger) AddSplit(splitID string, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range resp.Hits {
		m.offer(h)
	}
	m.numHits += resp.NumHits

	if resp.AggregationJSON != "" {
		if err := m.mergeAggregation(resp.AggregationJSON); err != nil {
			return fmt.Errorf("merge: split %s: %w", splitID, err)
		}
	}
	return nil
}

// AddFailedSplit records a per-split failure. Per-split failures never
// abort the request (spec.md §7).
func (m *Merger) AddFailedSplit(failure SplitSearchError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure)
}

// PeekWorstHit returns the hit that would be evicted by a newly-added
// better hit, or ok=false if the heap has not yet reached maxHits items.
func (m *Merger) PeekWorstHit() (hit PartialHit, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(len(m.heap)) < m.maxHits || m.maxHits == 0 {
		return PartialHit{}, false
	}
	return m.heap[0], true
}

// Finalize seals the aggregation state and returns the top-K sorted into
// response order (best hit first).
func (m *Merger) Finalize() (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := append([]PartialHit(nil), m.heap...)
	sort.SliceStable(hits, func(i, j int) bool { return m.better(hits[i], hits[j]) })

	var aggJSON string
	if m.hasAggregation {
		b, err := json.Marshal(m.aggregation)
		if err != nil {
			return Result{}, fmt.Errorf("merge: finalize aggregation: %w", err)
		}
		aggJSON = string(b)
	}

	return Result{
		Hits:            hits,
		AggregationJSON: aggJSON,
		NumHits:         m.numHits,
		Failures:        append([]SplitSearchError(nil), m.failures...),
	}, nil
}

// offer inserts hit into the bounded top-K, evicting the current worst hit
// if hit outranks it and the heap is already full. Must be called with m.mu
// held.
func (m *Merger) offer(hit PartialHit) {
	if m.maxHits == 0 {
		return
	}
	h := worstHeap{m}
	if uint64(len(m.heap)) < m.maxHits {
		heap.Push(h, hit)
		return
	}
	worst := m.heap[0]
	if m.better(hit, worst) {
		heap.Pop(h)
		heap.Push(h, hit)
	}
}

// better reports whether a ranks strictly ahead of b under the active sort
// mode.
func (m *Merger) better(a, b PartialHit) bool {
	switch m.mode {
	case BySortValueDesc:
		if a.HasSortValue != b.HasSortValue {
			return a.HasSortValue
		}
		if a.SortValue != b.SortValue {
			return a.SortValue > b.SortValue
		}
	case BySortValueAsc:
		if a.HasSortValue != b.HasSortValue {
			return a.HasSortValue
		}
		if a.SortValue != b.SortValue {
			return a.SortValue < b.SortValue
		}
	default: // BySplitIDDesc
		if a.SplitID != b.SplitID {
			return a.SplitID > b.SplitID
		}
	}
	if a.Segment != b.Segment {
		return a.Segment < b.Segment
	}
	return a.Doc < b.Doc
}

func (m *Merger) mergeAggregation(aggJSON string) error {
	var delta map[string]float64
	if err := json.Unmarshal([]byte(aggJSON), &delta); err != nil {
		return fmt.Errorf("invalid aggregation payload: %w", err)
	}
	if m.aggregation == nil {
		m.aggregation = make(map[string]float64, len(delta))
	}
	m.hasAggregation = true
	for k, v := range delta {
		m.aggregation[k] += v
	}
	return nil
}

// heapSlice holds the current top-K candidates. It carries no ordering of
// its own; worstHeap below adapts it to heap.Interface using the owning
// Merger's comparator, so the root is always the current worst retained
// hit, evictable in O(log K) and peekable in O(1).
type heapSlice []PartialHit

// worstHeap adapts a Merger's heapSlice to heap.Interface, using m.better
// to define "worst" as root. It is constructed fresh for each mutation
// rather than stored, since it is just a thin view over m.heap.
type worstHeap struct {
	m *Merger
}

func (h worstHeap) Len() int { return len(h.m.heap) }

func (h worstHeap) Less(i, j int) bool {
	// the root must be the worst hit, so the smaller-ranked (worse) entry
	// sorts first: Less(i, j) holds when i is strictly worse than j.
	return h.m.better(h.m.heap[j], h.m.heap[i])
}

func (h worstHeap) Swap(i, j int) {
	h.m.heap[i], h.m.heap[j] = h.m.heap[j], h.m.heap[i]
}

func (h worstHeap) Push(x interface{}) {
	h.m.heap = append(h.m.heap, x.(PartialHit))
}

func (h worstHeap) Pop() interface{} {
	old := h.m.heap
	n := len(old)
	x := old[n-1]
	h.m.heap = old[:n-1]
	return x
}
