// Package warmup plans and executes the prefetch of exactly the on-disk
// structures a query and its collector will need (C4 in SPEC_FULL.md).
// Tantivy-style search cannot fetch data asynchronously mid-search, so every
// byte range has to be resident before the query ever runs; this package is
// the "download everything in advance" step that makes that true.
package warmup

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/LessThanGreaterThan/quickwit/index"
)

// TermGroup is one field's set of exact terms to warm, e.g. gathered from a
// term query or a terms aggregation with a known value list.
type TermGroup struct {
	Field         string
	Terms         []index.Term
	NeedPositions bool
}

// TermRangeGroup is one field's set of term-dictionary ranges to warm, e.g.
// gathered from a range query.
type TermRangeGroup struct {
	Field         string
	Ranges        []index.TermRange
	NeedPositions bool
	Limit         uint64
}

// Plan is the full set of prefetch requests a query (plus its collector)
// needs satisfied before Execute may run it, mirroring quickwit's
// WarmupInfo.
type Plan struct {
	TermsByField      []TermGroup
	TermRangesByField []TermRangeGroup

	// TermDictFields names fields whose entire term dictionary and posting
	// lists must be loaded, because the terms touched cannot be named in
	// advance (e.g. an unbounded terms aggregation).
	TermDictFields []string

	// FastFields names fast-field columns the collector will read.
	FastFields []string

	// FieldNorms requests every segment's field-norms be warmed, needed by
	// scoring collectors.
	FieldNorms bool
}

// Merge folds other's requirements into p, as when a collector's own
// warmup needs (e.g. the sort field's fast-field column) are layered on top
// of the query's.
func (p *Plan) Merge(other Plan) {
	p.TermsByField = append(p.TermsByField, other.TermsByField...)
	p.TermRangesByField = append(p.TermRangesByField, other.TermRangesByField...)
	p.TermDictFields = append(p.TermDictFields, other.TermDictFields...)
	p.FastFields = append(p.FastFields, other.FastFields...)
	p.FieldNorms = p.FieldNorms || other.FieldNorms
}

// Simplify drops redundant requests: a field already present in
// TermDictFields makes any narrower TermGroup/TermRangeGroup for that same
// field pointless, since the whole dictionary (and its postings, via
// Execute's warm_up_postings step) will be loaded anyway. Fast field and
// term-dict field name lists are also deduplicated.
func (p *Plan) Simplify() {
	dictFields := make(map[string]bool, len(p.TermDictFields))
	for _, f := range dedupeStrings(p.TermDictFields) {
		dictFields[f] = true
	}
	p.TermDictFields = make([]string, 0, len(dictFields))
	for f := range dictFields {
		p.TermDictFields = append(p.TermDictFields, f)
	}

	filteredTerms := p.TermsByField[:0]
	for _, g := range p.TermsByField {
		if !dictFields[g.Field] {
			filteredTerms = append(filteredTerms, g)
		}
	}
	p.TermsByField = filteredTerms

	filteredRanges := p.TermRangesByField[:0]
	for _, g := range p.TermRangesByField {
		if !dictFields[g.Field] {
			filteredRanges = append(filteredRanges, g)
		}
	}
	p.TermRangesByField = filteredRanges

	p.FastFields = dedupeStrings(p.FastFields)
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Execute fans out the six prefetch families concurrently and fails fast:
// the first family to return an error cancels the rest via ctx, matching
// quickwit's try_join! over the six warmup futures.
func Execute(ctx context.Context, searcher index.Searcher, plan Plan) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return warmUpTerms(ctx, searcher, plan.TermsByField) })
	g.Go(func() error { return warmUpTermRanges(ctx, searcher, plan.TermRangesByField) })
	g.Go(func() error { return warmUpTermDictFields(ctx, searcher, plan.TermDictFields) })
	g.Go(func() error { return warmUpFastFields(ctx, searcher, plan.FastFields) })
	g.Go(func() error { return warmUpFieldNorms(ctx, searcher, plan.FieldNorms) })
	g.Go(func() error { return warmUpPostings(ctx, searcher, plan.TermDictFields) })

	return g.Wait()
}

func warmUpTerms(ctx context.Context, searcher index.Searcher, groups []TermGroup) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		for _, seg := range searcher.SegmentReaders() {
			seg := seg
			g.Go(func() error {
				inv, err := seg.InvertedIndex(group.Field)
				if err != nil {
					return err
				}
				return inv.WarmUpPostingsForTerms(ctx, group.Terms, group.NeedPositions)
			})
		}
	}
	return g.Wait()
}

func warmUpTermRanges(ctx context.Context, searcher index.Searcher, groups []TermRangeGroup) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		for _, seg := range searcher.SegmentReaders() {
			seg := seg
			g.Go(func() error {
				inv, err := seg.InvertedIndex(group.Field)
				if err != nil {
					return err
				}
				return inv.WarmUpPostingsForTermRanges(ctx, group.Ranges, group.NeedPositions, group.Limit)
			})
		}
	}
	return g.Wait()
}

func warmUpTermDictFields(ctx context.Context, searcher index.Searcher, fields []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, field := range fields {
		field := field
		for _, seg := range searcher.SegmentReaders() {
			seg := seg
			g.Go(func() error {
				inv, err := seg.InvertedIndex(field)
				if err != nil {
					return err
				}
				return inv.WarmUpDictionary(ctx)
			})
		}
	}
	return g.Wait()
}

// warmUpPostings loads the full posting lists (without positions) for
// term_dict_fields, alongside the dictionary itself warmed above. The
// original carries a TODO to fold this into warm_up_term_dict_fields; kept
// as a separate step here for the same reason it was there: the dictionary
// and the postings are fetched through different APIs.
func warmUpPostings(ctx context.Context, searcher index.Searcher, fields []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, field := range fields {
		field := field
		for _, seg := range searcher.SegmentReaders() {
			seg := seg
			g.Go(func() error {
				inv, err := seg.InvertedIndex(field)
				if err != nil {
					return err
				}
				return inv.WarmUpPostingsFull(ctx, false)
			})
		}
	}
	return g.Wait()
}

func warmUpFastFields(ctx context.Context, searcher index.Searcher, fieldNames []string) error {
	g, ctx := errgroup.WithContext(ctx)
	reader := searcher.FastFields()
	for _, name := range fieldNames {
		name := name
		g.Go(func() error {
			cols, err := reader.ListDynamicColumnHandles(ctx, name)
			if err != nil {
				return err
			}
			cg, cctx := errgroup.WithContext(ctx)
			for _, col := range cols {
				col := col
				cg.Go(func() error { return col.ReadBytesAsync(cctx) })
			}
			return cg.Wait()
		})
	}
	return g.Wait()
}

func warmUpFieldNorms(ctx context.Context, searcher index.Searcher, needed bool) error {
	if !needed {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, seg := range searcher.SegmentReaders() {
		seg := seg
		g.Go(func() error {
			// field norms have no per-field name at the collector layer in
			// this module; the empty field name addresses the segment's
			// single norms stream.
			fn, err := seg.FieldNorms("")
			if err != nil {
				return err
			}
			return fn.WarmUp(ctx)
		})
	}
	return g.Wait()
}
