package leafsearch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LessThanGreaterThan/quickwit/bundle"
	"github.com/LessThanGreaterThan/quickwit/index"
	"github.com/LessThanGreaterThan/quickwit/queryast"
	"github.com/LessThanGreaterThan/quickwit/splitcache"
	"github.com/LessThanGreaterThan/quickwit/storage/local"
	"github.com/LessThanGreaterThan/quickwit/threadpool"
	"github.com/LessThanGreaterThan/quickwit/warmup"
)

// fakeCollector is the per-split accumulator threaded through Plan -> Search
// -> Extract in these tests; its contents are filled in by whatever
// FakeSearcher.SearchFunc the test wired up for that split.
type fakeCollector struct {
	hits    []PartialHit
	aggJSON string
	numHits uint64
}

type funcPlanner struct {
	fn func(ctx context.Context, astJSON string, req SearchRequest) (warmup.Plan, index.Query, index.Collector, error)
}

func (p funcPlanner) Plan(ctx context.Context, astJSON string, req SearchRequest) (warmup.Plan, index.Query, index.Collector, error) {
	return p.fn(ctx, astJSON, req)
}

type funcExtractor struct{}

func (funcExtractor) Extract(collector index.Collector) ([]PartialHit, string, uint64, error) {
	fc := collector.(*fakeCollector)
	return fc.hits, fc.aggJSON, fc.numHits, nil
}

// testHarness wires a minimal Executor around t.TempDir()-backed splits,
// identifying which split a SearcherFactory call is for by encoding the
// split ID as the split's entire footer payload.
type testHarness struct {
	dir      string
	reader   *local.Reader
	deps     Dependencies
	pool     *threadpool.Pool
	astCalls []string
	astMu    sync.Mutex
}

func newTestHarness(t *testing.T, perSplit map[string]func(ctx context.Context, query index.Query, collector index.Collector) error, factoryErr map[string]error) *testHarness {
	t.Helper()
	dir := t.TempDir()
	reader, err := local.New(dir)
	require.NoError(t, err)

	h := &testHarness{dir: dir, reader: reader}
	h.pool = threadpool.New("leaf_test", 4)

	factory := func(ctx context.Context, d *bundle.Directory, footerBytes []byte) (index.Searcher, error) {
		splitID := string(footerBytes)
		if err, ok := factoryErr[splitID]; ok {
			return nil, err
		}
		searcher := index.NewFakeSearcher(1)
		if fn, ok := perSplit[splitID]; ok {
			searcher.SearchFunc = fn
		}
		return searcher, nil
	}

	h.deps = Dependencies{
		Storage:         reader,
		FooterCache:     splitcache.NewFooterCache(1 << 20),
		FastFieldCache:  splitcache.NewFastFieldCache(1 << 20),
		ResultCache:     splitcache.NewResultCache(1 << 20),
		SearcherFactory: factory,
		Planner: funcPlanner{fn: func(ctx context.Context, astJSON string, req SearchRequest) (warmup.Plan, index.Query, index.Collector, error) {
			h.astMu.Lock()
			h.astCalls = append(h.astCalls, astJSON)
			h.astMu.Unlock()
			return warmup.Plan{}, nil, &fakeCollector{}, nil
		}},
		Extractor:      funcExtractor{},
		TimestampField: "ts",
	}
	return h
}

func (h *testHarness) writeSplit(t *testing.T, splitID string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, splitID+".split"), []byte(splitID), 0o644))
}

func (h *testHarness) descriptor(splitID string, tsStart, tsEnd *int64) SplitDescriptor {
	return SplitDescriptor{
		SplitID:        splitID,
		FooterStart:    0,
		FooterEnd:      uint64(len(splitID)),
		TimestampStart: tsStart,
		TimestampEnd:   tsEnd,
	}
}

func TestSearch_MergesHitsAcrossSplitsBySplitID(t *testing.T) {
	h := newTestHarness(t, map[string]func(context.Context, index.Query, index.Collector) error{
		"s1": func(ctx context.Context, q index.Query, c index.Collector) error {
			c.(*fakeCollector).hits = []PartialHit{{Segment: 0, Doc: 0}}
			c.(*fakeCollector).numHits = 1
			return nil
		},
		"s2": func(ctx context.Context, q index.Query, c index.Collector) error {
			c.(*fakeCollector).hits = []PartialHit{{Segment: 0, Doc: 0}}
			c.(*fakeCollector).numHits = 1
			return nil
		},
	}, nil)
	h.writeSplit(t, "s1")
	h.writeSplit(t, "s2")

	exec := NewExecutor(DefaultConfig(), h.deps, h.pool, log.NewNopLogger())
	req := SearchRequest{QueryASTJSON: `{"type":"match_all"}`, MaxHits: 1, CountHits: CountAll}
	resp, err := exec.Search(context.Background(), req, []SplitDescriptor{
		h.descriptor("s1", nil, nil),
		h.descriptor("s2", nil, nil),
	})
	require.NoError(t, err)

	// no sort fields: fallback ordering keeps the lexicographically greatest
	// split ID, and both splits' counts are exact since CountHits was
	// CountAll.
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "s2", resp.Hits[0].SplitID)
	assert.Equal(t, uint64(2), resp.NumHits)
	assert.Empty(t, resp.Failures)
}

func TestSearch_FailedSplitRecordedAlongsideSuccess(t *testing.T) {
	h := newTestHarness(t, map[string]func(context.Context, index.Query, index.Collector) error{
		"good": func(ctx context.Context, q index.Query, c index.Collector) error {
			c.(*fakeCollector).hits = []PartialHit{{Segment: 0, Doc: 1}}
			c.(*fakeCollector).numHits = 1
			return nil
		},
	}, map[string]error{"bad": errors.New("boom")})
	h.writeSplit(t, "good")
	h.writeSplit(t, "bad")

	exec := NewExecutor(DefaultConfig(), h.deps, h.pool, log.NewNopLogger())
	req := SearchRequest{QueryASTJSON: `{"type":"match_all"}`, MaxHits: 10, CountHits: CountAll}
	resp, err := exec.Search(context.Background(), req, []SplitDescriptor{
		h.descriptor("good", nil, nil),
		h.descriptor("bad", nil, nil),
	})
	require.NoError(t, err)

	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "good", resp.Hits[0].SplitID)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "bad", resp.Failures[0].SplitID)
	assert.True(t, strings.Contains(resp.Failures[0].Message, "boom"))
}

func TestSearch_ResultCacheAvoidsResearchingSameSplit(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	h := newTestHarness(t, map[string]func(context.Context, index.Query, index.Collector) error{
		"s1": func(ctx context.Context, q index.Query, c index.Collector) error {
			mu.Lock()
			calls++
			mu.Unlock()
			c.(*fakeCollector).hits = []PartialHit{{Segment: 0, Doc: 0}}
			c.(*fakeCollector).numHits = 1
			return nil
		},
	}, nil)
	h.writeSplit(t, "s1")

	exec := NewExecutor(DefaultConfig(), h.deps, h.pool, log.NewNopLogger())
	req := SearchRequest{QueryASTJSON: `{"type":"match_all"}`, MaxHits: 1, CountHits: CountAll}
	splits := []SplitDescriptor{h.descriptor("s1", nil, nil)}

	resp1, err := exec.Search(context.Background(), req, splits)
	require.NoError(t, err)
	resp2, err := exec.Search(context.Background(), req, splits)
	require.NoError(t, err)

	assert.Equal(t, resp1, resp2)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestSearch_InvalidQueryReturnsErrInvalidQuery(t *testing.T) {
	h := newTestHarness(t, nil, nil)
	exec := NewExecutor(DefaultConfig(), h.deps, h.pool, log.NewNopLogger())
	_, err := exec.Search(context.Background(), SearchRequest{QueryASTJSON: "not json"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearch_TimestampRangeRedundantWithSplitBoundsIsDropped(t *testing.T) {
	h := newTestHarness(t, map[string]func(context.Context, index.Query, index.Collector) error{
		"s1": func(ctx context.Context, q index.Query, c index.Collector) error { return nil },
	}, nil)
	h.writeSplit(t, "s1")

	exec := NewExecutor(DefaultConfig(), h.deps, h.pool, log.NewNopLogger())
	t1, t2, t3, t4 := int64(1700001000), int64(1700002000), int64(1700003000), int64(1700004000)
	ast := queryast.RangeNode(queryast.RangeQuery{
		Field:      "ts",
		LowerBound: queryast.IncludedBound(queryast.NewJSONLiteralInt64(t1)),
		UpperBound: queryast.IncludedBound(queryast.NewJSONLiteralInt64(t4)),
	})
	astJSON := ast.String()

	req := SearchRequest{QueryASTJSON: astJSON, MaxHits: 10, CountHits: CountAll}
	_, err := exec.Search(context.Background(), req, []SplitDescriptor{h.descriptor("s1", &t2, &t3)})
	require.NoError(t, err)

	h.astMu.Lock()
	defer h.astMu.Unlock()
	require.Len(t, h.astCalls, 1)
	rewritten, err := queryast.ParseJSON(h.astCalls[0])
	require.NoError(t, err)
	assert.Equal(t, queryast.KindMatchAll, rewritten.Kind)
}
