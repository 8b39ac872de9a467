package recordindex

import (
	farm "github.com/dgryski/go-farm"
	bloom "github.com/dgraph-io/ristretto/z"
)

// Filter is a document-ID membership filter built over a split's record
// index, letting a point lookup skip the binary search (and the byte range
// read it would trigger) entirely when the ID is provably absent. Adapted
// from friggdb's per-block bloom filter (friggdb/wal/compactor_block.go),
// generalized from a fixed 128-bit trace ID to an arbitrary-length
// document ID via the same farm.Fingerprint64 hash friggdb already uses.
type Filter struct {
	bloom *bloom.Bloom
}

// NewFilter builds an empty Filter sized for estimatedEntries documents at
// the given false-positive rate (e.g. 0.01 for 1%).
func NewFilter(estimatedEntries int, falsePositiveRate float64) *Filter {
	return &Filter{bloom: bloom.NewBloomFilter(float64(estimatedEntries), falsePositiveRate)}
}

// Add registers id as present.
func (f *Filter) Add(id []byte) {
	f.bloom.Add(farm.Fingerprint64(id))
}

// MightContain reports whether id could be present. false is a definitive
// answer (id is absent); true may be a false positive.
func (f *Filter) MightContain(id []byte) bool {
	return f.bloom.Has(farm.Fingerprint64(id))
}

// Marshal serializes the filter for storage alongside a split's record
// index.
func (f *Filter) Marshal() []byte {
	return f.bloom.JSONMarshal()
}

// UnmarshalFilter deserializes a Filter produced by Marshal.
func UnmarshalFilter(data []byte) *Filter {
	return &Filter{bloom: bloom.JSONUnmarshal(data)}
}
