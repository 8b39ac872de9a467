package leafsearch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LessThanGreaterThan/quickwit/recordindex"
	"github.com/LessThanGreaterThan/quickwit/splitcache"
	"github.com/LessThanGreaterThan/quickwit/storage"
	"github.com/LessThanGreaterThan/quickwit/storage/local"
)

// buildSplitFile writes one split's bundle file as [bloom][index][doc...],
// returning the PointLookupSplit describing where each section landed.
func buildSplitFile(t *testing.T, dir, splitID string, ids [][]byte, docs [][]byte, minID, maxID []byte) PointLookupSplit {
	t.Helper()

	filter := recordindex.NewFilter(len(ids), 0.01)
	for _, id := range ids {
		filter.Add(id)
	}
	bloomBytes := filter.Marshal()

	// Records are built with doc-section-relative offsets first; the
	// marshaled size of an index does not depend on the Start values it
	// carries, only on the ID lengths, so indexLen is already final.
	var records []recordindex.Record
	var docSection []byte
	offset := uint64(0)
	for i, id := range ids {
		records = append(records, recordindex.Record{ID: id, Start: offset, Length: uint32(len(docs[i]))})
		docSection = append(docSection, docs[i]...)
		offset += uint64(len(docs[i]))
	}
	recordindex.SortRecords(records)
	indexLen := len(recordindex.MarshalRecords(records))

	bloomRange := storage.ByteRange{Start: 0, End: uint64(len(bloomBytes))}
	indexRange := storage.ByteRange{Start: bloomRange.End, End: bloomRange.End + uint64(indexLen)}
	docBase := indexRange.End

	rebased := make([]recordindex.Record, len(records))
	for i, r := range records {
		rebased[i] = recordindex.Record{ID: r.ID, Start: r.Start + docBase, Length: r.Length}
	}
	recordindex.SortRecords(rebased)
	indexBytes := recordindex.MarshalRecords(rebased)

	var file []byte
	file = append(file, bloomBytes...)
	file = append(file, indexBytes...)
	file = append(file, docSection...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, splitID+".split"), file, 0o644))

	return PointLookupSplit{
		SplitID:          splitID,
		DataFileName:     splitID + ".split",
		MinID:            minID,
		MaxID:            maxID,
		HasBloom:         true,
		BloomRange:       bloomRange,
		RecordIndexRange: indexRange,
	}
}

func TestLookupByID_FindsDocumentInCandidateSplit(t *testing.T) {
	dir := t.TempDir()
	reader, err := local.New(dir)
	require.NoError(t, err)

	split := buildSplitFile(t, dir, NewSplitID(),
		[][]byte{[]byte("aaa"), []byte("bbb"), []byte("ccc")},
		[][]byte{[]byte("doc-a"), []byte("doc-b"), []byte("doc-c")},
		[]byte("aaa"), []byte("ccc"))

	exec := NewPointLookupExecutor(reader, splitcache.NewFastFieldCache(1<<20))
	doc, metrics, err := exec.LookupByID(context.Background(), []byte("bbb"), []PointLookupSplit{split})
	require.NoError(t, err)
	assert.Equal(t, "doc-b", string(doc))
	assert.EqualValues(t, 1, metrics.BloomFilterReads)
	assert.EqualValues(t, 1, metrics.IndexReads)
	assert.EqualValues(t, 1, metrics.DocumentReads)
}

func TestLookupByID_OutOfRangeSplitNeverRead(t *testing.T) {
	dir := t.TempDir()
	reader, err := local.New(dir)
	require.NoError(t, err)

	split := buildSplitFile(t, dir, NewSplitID(),
		[][]byte{[]byte("aaa")}, [][]byte{[]byte("doc-a")},
		[]byte("aaa"), []byte("aaa"))

	exec := NewPointLookupExecutor(reader, splitcache.NewFastFieldCache(1<<20))
	_, _, err = exec.LookupByID(context.Background(), []byte("zzz"), []PointLookupSplit{split})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestLookupByID_InRangeButAbsentIsNotFound(t *testing.T) {
	dir := t.TempDir()
	reader, err := local.New(dir)
	require.NoError(t, err)

	split := buildSplitFile(t, dir, NewSplitID(),
		[][]byte{[]byte("aaa"), []byte("ccc")}, [][]byte{[]byte("doc-a"), []byte("doc-c")},
		[]byte("aaa"), []byte("ccc"))

	exec := NewPointLookupExecutor(reader, splitcache.NewFastFieldCache(1<<20))
	_, _, err = exec.LookupByID(context.Background(), []byte("bbb"), []PointLookupSplit{split})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestLookupByID_SearchesMultipleCandidateSplits(t *testing.T) {
	dir := t.TempDir()
	reader, err := local.New(dir)
	require.NoError(t, err)

	s1 := buildSplitFile(t, dir, NewSplitID(), [][]byte{[]byte("aaa")}, [][]byte{[]byte("doc-a")}, []byte("aaa"), []byte("ddd"))
	s2 := buildSplitFile(t, dir, NewSplitID(), [][]byte{[]byte("ccc")}, [][]byte{[]byte("doc-c")}, []byte("bbb"), []byte("ddd"))

	exec := NewPointLookupExecutor(reader, splitcache.NewFastFieldCache(1<<20))
	doc, _, err := exec.LookupByID(context.Background(), []byte("ccc"), []PointLookupSplit{s1, s2})
	require.NoError(t, err)
	assert.Equal(t, "doc-c", string(doc))
}

func TestLookupByID_MissingBloomFallsBackToIndexOnly(t *testing.T) {
	dir := t.TempDir()
	reader, err := local.New(dir)
	require.NoError(t, err)

	split := buildSplitFile(t, dir, NewSplitID(),
		[][]byte{[]byte("aaa"), []byte("bbb")}, [][]byte{[]byte("doc-a"), []byte("doc-b")},
		[]byte("aaa"), []byte("bbb"))
	split.HasBloom = false

	exec := NewPointLookupExecutor(reader, splitcache.NewFastFieldCache(1<<20))
	doc, metrics, err := exec.LookupByID(context.Background(), []byte("bbb"), []PointLookupSplit{split})
	require.NoError(t, err)
	assert.Equal(t, "doc-b", string(doc))
	assert.EqualValues(t, 0, metrics.BloomFilterReads)
	assert.EqualValues(t, 1, metrics.IndexReads)
}
