package leafsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/semaphore"

	"github.com/LessThanGreaterThan/quickwit/bundle"
	"github.com/LessThanGreaterThan/quickwit/merge"
	"github.com/LessThanGreaterThan/quickwit/queryast"
	"github.com/LessThanGreaterThan/quickwit/splitcache"
	"github.com/LessThanGreaterThan/quickwit/splitfilter"
	"github.com/LessThanGreaterThan/quickwit/storage"
	"github.com/LessThanGreaterThan/quickwit/threadpool"
	"github.com/LessThanGreaterThan/quickwit/warmup"
)

// Dependencies wires an Executor to the rest of the system: the backing
// blob store, the three split caches, the split-format-specific opener, and
// the query compiler/result extractor a doc mapper would otherwise own.
type Dependencies struct {
	Storage storage.Reader

	FooterCache    *splitcache.FooterCache
	FastFieldCache *splitcache.FastFieldCache
	ResultCache    *splitcache.ResultCache

	SearcherFactory bundle.SearcherFactory
	Planner         QueryPlanner
	Extractor       ResultExtractor

	// TimestampField names the field rewrite R2 and the split filter treat
	// as the split-pruning clock. Empty if the index has none.
	TimestampField string
}

// Executor runs search requests against a catalog of splits, per spec.md §4:
// it rewrites and prunes the request per split, warms up exactly the bytes a
// query will touch, executes it, and merges the per-split partial results
// into one response.
type Executor struct {
	cfg  Config
	deps Dependencies

	pool *threadpool.Pool
	sem  *semaphore.Weighted

	logger log.Logger
}

// NewExecutor builds an Executor. pool runs every per-split search and the
// final merge finalize step; it is accepted rather than constructed
// internally so callers can size and share it across Executors. The
// Executor's own semaphore, sized by cfg.MaxConcurrentSplits (at least 1),
// bounds how many splits may be open (footer fetched, warmed, and searched)
// at once across every in-flight request sharing this Executor, matching
// spec.md §5's global concurrency limit.
func NewExecutor(cfg Config, deps Dependencies, pool *threadpool.Pool, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	maxConcurrent := cfg.MaxConcurrentSplits
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Executor{
		cfg:    cfg,
		deps:   deps,
		pool:   pool,
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: logger,
	}
}

// splitTask is the per-split working set threaded through a spawned search:
// its descriptor and the (possibly pruned-to-count-only) request clone it
// should run. Splits skipped outright never get a splitTask.
type splitTask struct {
	descriptor SplitDescriptor
	request    SearchRequest
}

// Search runs req against every split in splits, returning their merged
// partial result. Splits are visited in the order the active split filter
// variant judges most likely to fill the top-K first, so later splits have
// the best chance of being pruned outright.
func (e *Executor) Search(ctx context.Context, req SearchRequest, splits []SplitDescriptor) (LeafSearchResponse, error) {
	if _, err := queryast.ParseJSON(req.QueryASTJSON); err != nil {
		return LeafSearchResponse{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	filterReq := e.splitFilterRequest(req)
	filter := splitfilter.FromRequest(filterReq)

	order := make([]splitfilter.Split, len(splits))
	positionBySplitID := make(map[string]int, len(splits))
	for i, s := range splits {
		order[i] = toFilterSplit(s)
		positionBySplitID[s.SplitID] = i
	}
	splitfilter.OptimizeSplitOrder(filter.Variant(), order)

	ordered := make([]SplitDescriptor, len(order))
	for i, fs := range order {
		ordered[i] = splits[positionBySplitID[fs.SplitID]]
	}

	runAllSplits := req.CountHits == CountAll ||
		(req.AggregationRequestJSON != "" && filter.Variant() != splitfilter.FindTraceIdsAggregation)

	merger := merge.New(req.MaxHits, mergeSortMode(req.SortFields))

	var filterMu sync.Mutex
	var wg sync.WaitGroup

	for _, split := range ordered {
		filterMu.Lock()
		canBeBetter := filter.CanBeBetter(toFilterSplit(split))
		filterMu.Unlock()

		if !canBeBetter && !runAllSplits {
			metricSplitsPrunedTotal.Inc()
			continue
		}

		splitReq := req.Clone()
		if !canBeBetter {
			// Still visited for an exact count, but trimmed to the cheapest
			// possible shape: no hits are retained and no sort is computed.
			splitReq.MaxHits = 0
			splitReq.StartOffset = 0
			splitReq.SortFields = nil
		}

		if err := e.sem.Acquire(ctx, 1); err != nil {
			merger.AddFailedSplit(merge.SplitSearchError{
				SplitID:   split.SplitID,
				Message:   err.Error(),
				Retryable: true,
			})
			continue
		}

		wg.Add(1)
		go func(task splitTask) {
			defer wg.Done()
			e.runSplitTask(ctx, task, merger, filter, &filterMu)
		}(splitTask{descriptor: split, request: splitReq})
	}

	wg.Wait()

	finalizeFuture := threadpool.Run(e.pool, func() mergeFinalizeResult {
		result, err := merger.Finalize()
		return mergeFinalizeResult{result: result, err: err}
	})
	finalized, err := finalizeFuture.Wait(ctx)
	if err != nil {
		return LeafSearchResponse{}, fmt.Errorf("leafsearch: finalize: %w", err)
	}
	if finalized.err != nil {
		return LeafSearchResponse{}, fmt.Errorf("leafsearch: finalize: %w", finalized.err)
	}

	return toLeafSearchResponse(finalized.result), nil
}

type mergeFinalizeResult struct {
	result merge.Result
	err    error
}

// runSplitTask searches one split, releasing its concurrency permit as soon
// as the single-split search completes (success or failure) rather than
// holding it through the merge bookkeeping that follows, then folds the
// outcome into merger and tightens filter's pruning bound from the new
// worst retained hit, matching the acquire/search/release/record sequence
// of the original leaf_search_single_split_wrapper.
func (e *Executor) runSplitTask(ctx context.Context, task splitTask, merger *merge.Merger, filter *splitfilter.Filter, filterMu *sync.Mutex) {
	resp, err := e.safeSearchSplit(ctx, task)
	e.sem.Release(1)

	if err != nil {
		level.Warn(e.logger).Log("msg", "split search failed", "split_id", task.descriptor.SplitID, "err", err)
		metricSplitFailuresTotal.Inc()
		merger.AddFailedSplit(merge.SplitSearchError{
			SplitID:   task.descriptor.SplitID,
			Message:   err.Error(),
			Retryable: true,
		})
	} else {
		metricSplitsSearchedTotal.Inc()
		if mergeErr := merger.AddSplit(task.descriptor.SplitID, resp); mergeErr != nil {
			level.Warn(e.logger).Log("msg", "failed to merge split result", "split_id", task.descriptor.SplitID, "err", mergeErr)
			merger.AddFailedSplit(merge.SplitSearchError{
				SplitID:   task.descriptor.SplitID,
				Message:   mergeErr.Error(),
				Retryable: false,
			})
		}
	}

	if worst, ok := merger.PeekWorstHit(); ok {
		filterMu.Lock()
		filter.RecordNewWorstHit(worst.SplitID, worst.HasSortValue, worst.SortValue)
		filterMu.Unlock()
	}
}

// safeSearchSplit recovers a panic from searchSplit into an error, the same
// safety net the original applies around each spawned per-split task so one
// bad split never takes down the whole request.
func (e *Executor) safeSearchSplit(ctx context.Context, task splitTask) (resp merge.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return e.searchSplit(ctx, task)
}

// searchSplit runs the full single-split pipeline: rewrite, cache lookup,
// open, warm up, execute, cache fill.
func (e *Executor) searchSplit(ctx context.Context, task splitTask) (merge.Response, error) {
	split := task.descriptor
	req := task.request

	// R1: a request asking for zero hits has nothing left to sort.
	if req.MaxHits == 0 {
		req.SortFields = nil
	}

	// R2: fold the request-level timestamp window into the query AST,
	// intersected against this split's own bounds.
	if e.deps.TimestampField != "" {
		bounds := queryast.SplitTimestampBounds{Start: split.TimestampStart, End: split.TimestampEnd}
		if rewritten, ok := queryast.RewriteTimestampRange(req.QueryASTJSON, req.StartTimestamp, req.EndTimestamp, bounds, e.deps.TimestampField); ok {
			req.QueryASTJSON = rewritten
			req.StartTimestamp = nil
			req.EndTimestamp = nil
		}
	}

	cacheKey := splitcache.ResultCacheKey{
		SplitID:          split.SplitID,
		RewrittenASTJSON: req.QueryASTJSON,
		MaxHits:          req.MaxHits,
		SortFieldsJSON:   sortFieldsCacheKey(req.SortFields),
		AggregationJSON:  req.AggregationRequestJSON,
	}
	if cached, ok := e.deps.ResultCache.Get(cacheKey); ok {
		var resp merge.Response
		if err := json.Unmarshal(cached, &resp); err == nil {
			metricResultCacheHitsTotal.Inc()
			return resp, nil
		}
		// a corrupt cache entry is treated as a miss, not an error.
	}

	resp, err := e.executeSplit(ctx, split, req)
	if err != nil {
		return merge.Response{}, err
	}

	if b, err := json.Marshal(resp); err == nil {
		e.deps.ResultCache.Put(cacheKey, b)
	}
	return resp, nil
}

// executeSplit opens the split, builds and warms the query, and runs it on
// the CPU thread pool.
func (e *Executor) executeSplit(ctx context.Context, split SplitDescriptor, req SearchRequest) (merge.Response, error) {
	start := time.Now()
	defer func() { metricSplitSearchDuration.Observe(time.Since(start).Seconds()) }()

	b, err := bundle.Open(ctx, e.deps.Storage, split.SplitID, split.SplitFileName(),
		storage.ByteRange{Start: split.FooterStart, End: split.FooterEnd},
		e.deps.FooterCache, e.deps.FastFieldCache, e.deps.SearcherFactory)
	if err != nil {
		return merge.Response{}, wrapSplitError(split.SplitID, err)
	}

	plan, query, collector, err := e.deps.Planner.Plan(ctx, req.QueryASTJSON, req)
	if err != nil {
		return merge.Response{}, wrapSplitError(split.SplitID, err)
	}
	plan.Simplify()

	if err := warmup.Execute(ctx, b.Searcher, plan); err != nil {
		return merge.Response{}, wrapSplitError(split.SplitID, fmt.Errorf("warmup: %w", err))
	}

	searchFuture := threadpool.Run(e.pool, func() error {
		return b.Searcher.Search(ctx, query, collector)
	})
	if err := mustWait(searchFuture, ctx); err != nil {
		return merge.Response{}, wrapSplitError(split.SplitID, fmt.Errorf("search: %w", err))
	}

	hits, aggJSON, numHits, err := e.deps.Extractor.Extract(collector)
	if err != nil {
		return merge.Response{}, wrapSplitError(split.SplitID, fmt.Errorf("extract: %w", err))
	}

	return merge.Response{
		Hits:            toMergeHits(split.SplitID, hits),
		AggregationJSON: aggJSON,
		NumHits:         numHits,
	}, nil
}

func mustWait(f *threadpool.Future[error], ctx context.Context) error {
	err, waitErr := f.Wait(ctx)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (e *Executor) splitFilterRequest(req SearchRequest) splitfilter.Request {
	sortFields := make([]splitfilter.SortField, len(req.SortFields))
	for i, sf := range req.SortFields {
		sortFields[i] = splitfilter.SortField{FieldName: sf.FieldName, Order: splitfilter.SortOrder(sf.Order)}
	}
	return splitfilter.Request{
		MaxHits:            req.MaxHits,
		SortFields:         sortFields,
		AggregationKind:    aggregationKind(req.AggregationRequestJSON, e.deps.TimestampField),
		TimestampFieldName: e.deps.TimestampField,
		HasTimestampField:  e.deps.TimestampField != "",
	}
}

// aggregationKind does just enough of a peek into the opaque aggregation
// payload to recognize the trace-id-finding special case; anything else is
// an ordinary aggregation as far as split pruning is concerned.
func aggregationKind(aggregationJSON, timestampField string) splitfilter.AggregationKind {
	if aggregationJSON == "" {
		return splitfilter.AggregationKind{}
	}
	var probe struct {
		FindTraceIdsAggregation *struct {
			SpanTimestampFieldName string `json:"span_timestamp_field_name"`
		} `json:"find_trace_ids_aggregation"`
	}
	if err := json.Unmarshal([]byte(aggregationJSON), &probe); err != nil || probe.FindTraceIdsAggregation == nil {
		return splitfilter.AggregationKind{}
	}
	return splitfilter.AggregationKind{
		IsFindTraceIds:         true,
		SpanTimestampFieldName: probe.FindTraceIdsAggregation.SpanTimestampFieldName,
	}
}

func mergeSortMode(sortFields []SortField) merge.SortMode {
	if len(sortFields) == 0 {
		return merge.BySplitIDDesc
	}
	if sortFields[0].Order == SortDesc {
		return merge.BySortValueDesc
	}
	return merge.BySortValueAsc
}

func toFilterSplit(s SplitDescriptor) splitfilter.Split {
	fs := splitfilter.Split{SplitID: s.SplitID}
	if s.TimestampStart != nil && s.TimestampEnd != nil {
		fs.HasTimestamps = true
		fs.TimestampStart = *s.TimestampStart
		fs.TimestampEnd = *s.TimestampEnd
	}
	return fs
}

func sortFieldsCacheKey(sortFields []SortField) string {
	b, err := json.Marshal(sortFields)
	if err != nil {
		return ""
	}
	return string(b)
}

func toMergeHits(splitID string, hits []PartialHit) []merge.PartialHit {
	out := make([]merge.PartialHit, len(hits))
	for i, h := range hits {
		out[i] = merge.PartialHit{
			SplitID:      splitID,
			Segment:      h.Segment,
			Doc:          h.Doc,
			HasSortValue: h.SortValue.HasI64,
			SortValue:    h.SortValue.I64,
		}
	}
	return out
}

func toLeafSearchResponse(r merge.Result) LeafSearchResponse {
	hits := make([]PartialHit, len(r.Hits))
	for i, h := range r.Hits {
		hits[i] = PartialHit{
			SplitID: h.SplitID,
			Segment: h.Segment,
			Doc:     h.Doc,
			SortValue: SortValue{
				HasI64: h.HasSortValue,
				I64:    h.SortValue,
			},
		}
	}
	failures := make([]SplitSearchError, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = SplitSearchError{SplitID: f.SplitID, Message: f.Message, Retryable: f.Retryable}
	}
	return LeafSearchResponse{
		Hits:            hits,
		AggregationJSON: r.AggregationJSON,
		NumHits:         r.NumHits,
		Failures:        failures,
	}
}
