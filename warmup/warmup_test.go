package warmup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LessThanGreaterThan/quickwit/index"
)

func TestSimplify_TermDictFieldSubsumesNarrowerRequests(t *testing.T) {
	p := Plan{
		TermsByField:      []TermGroup{{Field: "service", Terms: []index.Term{{Field: "service", Value: []byte("a")}}}},
		TermRangesByField: []TermRangeGroup{{Field: "service"}},
		TermDictFields:    []string{"service", "service"},
		FastFields:        []string{"duration", "duration"},
	}
	p.Simplify()

	assert.Empty(t, p.TermsByField)
	assert.Empty(t, p.TermRangesByField)
	assert.Equal(t, []string{"service"}, p.TermDictFields)
	assert.Equal(t, []string{"duration"}, p.FastFields)
}

func TestSimplify_UnrelatedFieldsUntouched(t *testing.T) {
	p := Plan{
		TermsByField:   []TermGroup{{Field: "status", Terms: []index.Term{{Field: "status", Value: []byte("ok")}}}},
		TermDictFields: []string{"service"},
	}
	p.Simplify()
	require.Len(t, p.TermsByField, 1)
	assert.Equal(t, "status", p.TermsByField[0].Field)
}

func TestMerge_CombinesPlansAndFieldNormsORs(t *testing.T) {
	p := Plan{FastFields: []string{"a"}}
	p.Merge(Plan{FastFields: []string{"b"}, FieldNorms: true})
	assert.ElementsMatch(t, []string{"a", "b"}, p.FastFields)
	assert.True(t, p.FieldNorms)
}

func TestExecute_AllFamiliesSucceedAndWarmTermDictionary(t *testing.T) {
	searcher := index.NewFakeSearcher(2)
	searcher.FastFields().(*index.FakeFastFieldReader).AddColumn("duration")

	plan := Plan{
		TermsByField:      []TermGroup{{Field: "service", Terms: []index.Term{{Field: "service", Value: []byte("frontend")}}}},
		TermRangesByField: []TermRangeGroup{{Field: "duration_ms"}},
		TermDictFields:    []string{"span_name"},
		FastFields:        []string{"duration"},
		FieldNorms:        true,
	}

	err := Execute(context.Background(), searcher, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"span_name"}, searcher.WarmedDictionaries())
}

func TestExecute_FailsFastOnFirstError(t *testing.T) {
	searcher := index.NewFakeSearcher(1)
	seg := searcher.SegmentReaders()[0].(*index.FakeSegmentReader)
	inv, err := seg.InvertedIndex("broken")
	require.NoError(t, err)
	inv.(*index.FakeInvertedIndex).FailWith = errors.New("boom")

	plan := Plan{TermDictFields: []string{"broken"}}
	err = Execute(context.Background(), searcher, plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
