package queryast

// SplitTimestampBounds is the subset of a split descriptor the rewriter
// needs: its inclusive timestamp range, if any.
type SplitTimestampBounds struct {
	Start *int64
	End   *int64
}

const secToNanos = 1_000_000_000

// RewriteTimestampRange applies R2 from spec.md §4.5: it removes a
// timestamp range that would be evaluated both by the AST and by the
// request-level start/end window, folding the two into at most one Range
// node intersected against the split's own bounds. It returns the rewritten
// AST as JSON; request-level start/end should be cleared by the caller on
// success, matching step 5 of §4.5.
//
// An AST that fails to parse is returned unmodified with ok=false: the
// original logs a warning and lets the error surface later when the query
// is actually built, rather than failing the rewrite outright.
func RewriteTimestampRange(queryASTJSON string, startTS, endTS *int64, split SplitTimestampBounds, timestampField string) (rewritten string, ok bool) {
	out, err := removeRedundantTimestampRange(queryASTJSON, startTS, endTS, split, timestampField)
	if err != nil {
		return queryASTJSON, false
	}
	return out, true
}

func removeRedundantTimestampRange(queryASTJSON string, startTS, endTS *int64, split SplitTimestampBounds, timestampField string) (string, error) {
	ast, err := ParseJSON(queryASTJSON)
	if err != nil {
		return "", err
	}

	startBound := UnboundedBound[int64]()
	if startTS != nil {
		startBound = IncludedBound(*startTS)
	}
	endBound := UnboundedBound[int64]()
	if endTS != nil {
		endBound = ExcludedBound(*endTS)
	}

	visitor := &removeTimestampVisitor{
		timestampField: timestampField,
		start:          startBound,
		end:            endBound,
	}
	newAST := visitor.transform(ast)

	finalStart := intersectLower(visitor.start, split.Start)
	finalEnd := intersectUpper(visitor.end, split.End)

	if !finalStart.IsUnbounded() || !finalEnd.IsUnbounded() {
		rangeNode := RangeNode(RangeQuery{
			Field:      timestampField,
			LowerBound: MapBound(finalStart, secondsToNanosLiteral),
			UpperBound: MapBound(finalEnd, secondsToNanosLiteral),
		})
		newAST = mergeRangeIntoAST(newAST, rangeNode)
	}

	b, err := newAST.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func secondsToNanosLiteral(sec int64) JSONLiteral {
	return NewJSONLiteralInt64(sec * secToNanos)
}

// intersectLower drops a surviving query-level lower bound that the split's
// own bound already implies, per spec.md §4.5 step 3:
//
//	Included @ T kept iff T > split.start; Excluded @ T kept iff T >= split.start.
func intersectLower(queryBound Bound[int64], splitStart *int64) Bound[int64] {
	if splitStart == nil {
		return queryBound
	}
	switch queryBound.Kind {
	case Included:
		if queryBound.Value > *splitStart {
			return queryBound
		}
		return UnboundedBound[int64]()
	case Excluded:
		if queryBound.Value >= *splitStart {
			return queryBound
		}
		return UnboundedBound[int64]()
	default:
		return UnboundedBound[int64]()
	}
}

// intersectUpper is the upper-bound counterpart of intersectLower:
//
//	Included @ T kept iff T < split.end; Excluded @ T kept iff T <= split.end.
func intersectUpper(queryBound Bound[int64], splitEnd *int64) Bound[int64] {
	if splitEnd == nil {
		return queryBound
	}
	switch queryBound.Kind {
	case Included:
		if queryBound.Value < *splitEnd {
			return queryBound
		}
		return UnboundedBound[int64]()
	case Excluded:
		if queryBound.Value <= *splitEnd {
			return queryBound
		}
		return UnboundedBound[int64]()
	default:
		return UnboundedBound[int64]()
	}
}

// mergeRangeIntoAST appends the derived range node into the top-level Bool's
// filter clause, creating an enclosing Bool if the AST root isn't one. The
// special case in spec.md §4.5 step 4 keeps a should-only Bool from being
// promoted into a required conjunction: it gets wrapped one level deeper
// instead of having the filter spliced directly into it.
func mergeRangeIntoAST(ast Node, rangeNode Node) Node {
	if ast.Kind == KindBool {
		b := *ast.Bool
		if len(b.Must) == 0 && len(b.Filter) == 0 && len(b.Should) != 0 {
			return BoolNode(BoolQuery{
				Must:   []Node{ast},
				Filter: []Node{rangeNode},
			})
		}
		b.Filter = append(b.Filter, rangeNode)
		return BoolNode(b)
	}
	return BoolNode(BoolQuery{
		Must:   []Node{ast},
		Filter: []Node{rangeNode},
	})
}

// removeTimestampVisitor walks the strictly-positive positions of the AST
// (Bool.Must and Bool.Filter — never Should or MustNot), replacing every
// Range on the timestamp field with MatchAll and folding its bounds into an
// accumulator.
type removeTimestampVisitor struct {
	timestampField string
	start          Bound[int64]
	end            Bound[int64]
}

func (v *removeTimestampVisitor) transform(n Node) Node {
	switch n.Kind {
	case KindBool:
		b := *n.Bool
		b.Must = v.transformAll(b.Must)
		b.Filter = v.transformAll(b.Filter)
		// Should and MustNot are left untouched: they are not
		// strictly-positive positions.
		return BoolNode(b)
	case KindRange:
		if n.Range.Field != v.timestampField {
			return n
		}
		v.foldLower(n.Range.LowerBound)
		v.foldUpper(n.Range.UpperBound)
		return MatchAll()
	default:
		return n
	}
}

func (v *removeTimestampVisitor) transformAll(nodes []Node) []Node {
	if len(nodes) == 0 {
		return nodes
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = v.transform(n)
	}
	return out
}

func (v *removeTimestampVisitor) foldLower(b Bound[JSONLiteral]) {
	sec, ok := literalToSeconds(b)
	if !ok {
		return
	}
	switch b.Kind {
	case Included:
		v.start = MaxLower(v.start, IncludedBound(sec))
	case Excluded:
		v.start = MaxLower(v.start, ExcludedBound(sec))
	}
}

func (v *removeTimestampVisitor) foldUpper(b Bound[JSONLiteral]) {
	sec, ok := literalToSeconds(b)
	if !ok {
		return
	}
	switch b.Kind {
	case Included:
		v.end = MinUpper(v.end, IncludedBound(sec))
	case Excluded:
		v.end = MinUpper(v.end, ExcludedBound(sec))
	}
}

// literalToSeconds interprets an AST-level range bound as seconds. Per
// spec.md's test fixtures, AST ranges on the timestamp field are expressed
// in the same unit as the request-level bounds (seconds); a bound that
// fails to parse is ignored, just as the original logs a warning and moves
// on rather than failing the whole rewrite.
func literalToSeconds(b Bound[JSONLiteral]) (int64, bool) {
	if b.Kind == Unbounded {
		return 0, false
	}
	return b.Value.AsInt64()
}
