package leafsearch

import (
	"context"

	"github.com/LessThanGreaterThan/quickwit/index"
	"github.com/LessThanGreaterThan/quickwit/warmup"
)

// QueryPlanner turns a rewritten query AST and the originating request into
// something runnable against an opened split: the tantivy-level Query, the
// Collector that will accumulate matches, and the warmup.Plan naming every
// byte range that Query/Collector pair will touch. This is injected rather
// than built in, the same way quickwit's leaf takes a DocMapper from the
// caller: translating a query AST into index-native terms is schema- and
// index-format-specific, not something the leaf executor itself should own.
type QueryPlanner interface {
	Plan(ctx context.Context, rewrittenQueryASTJSON string, req SearchRequest) (warmup.Plan, index.Query, index.Collector, error)
}

// ResultExtractor reads back whatever a Collector accumulated after
// Searcher.Search returns, translating it into the merger's wire shape.
type ResultExtractor interface {
	Extract(collector index.Collector) (Hits []PartialHit, AggregationJSON string, NumHits uint64, err error)
}
