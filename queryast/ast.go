package queryast

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant of a QueryAst node. Real deployments carry many more
// variants (Phrase, Wildcard, Boost, ...); this package treats anything
// outside the five named here as an opaque leaf node that rewrite passes
// through untouched (spec.md §3: "MatchAll, and others treated opaquely").
type Kind string

const (
	KindMatchAll Kind = "match_all"
	KindBool     Kind = "bool"
	KindRange    Kind = "range"
	KindTerm     Kind = "term"
	KindOpaque   Kind = "opaque"
)

// Node is a tagged query AST node. Exactly one of Bool/Range/Term/Raw is
// populated, selected by Kind.
type Node struct {
	Kind Kind

	Bool  *BoolQuery
	Range *RangeQuery
	Term  *TermQuery

	// Raw holds the original JSON for any variant this package does not
	// model explicitly (KindOpaque). It round-trips unmodified.
	Raw json.RawMessage
}

// BoolQuery holds the four clause lists of a boolean query. Per spec.md
// §4.5 R2, only Must and Filter are "strictly-positive" positions: Should
// and MustNot never contribute to, or get rewritten by, the timestamp-range
// visitor.
type BoolQuery struct {
	Must    []Node
	Should  []Node
	Filter  []Node
	MustNot []Node
}

// RangeQuery is an inclusive/exclusive/unbounded range filter on a single
// field.
type RangeQuery struct {
	Field      string
	LowerBound Bound[JSONLiteral]
	UpperBound Bound[JSONLiteral]
}

// TermQuery matches a single field/value pair.
type TermQuery struct {
	Field string
	Value string
}

// JSONLiteral is a scalar value carried by a range bound, preserving
// whatever numeric/string shape the wire JSON used.
type JSONLiteral struct {
	raw json.RawMessage
}

func NewJSONLiteralInt64(v int64) JSONLiteral {
	b, _ := json.Marshal(v)
	return JSONLiteral{raw: b}
}

func NewJSONLiteralUint64(v uint64) JSONLiteral {
	b, _ := json.Marshal(v)
	return JSONLiteral{raw: b}
}

// AsInt64 interprets the literal as an integer timestamp (seconds or
// nanoseconds depending on caller context).
func (j JSONLiteral) AsInt64() (int64, bool) {
	var v int64
	if err := json.Unmarshal(j.raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func (j JSONLiteral) MarshalJSON() ([]byte, error) {
	if j.raw == nil {
		return []byte("null"), nil
	}
	return j.raw, nil
}

func (j *JSONLiteral) UnmarshalJSON(b []byte) error {
	j.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MatchAll builds a MatchAll node.
func MatchAll() Node {
	return Node{Kind: KindMatchAll}
}

func BoolNode(q BoolQuery) Node {
	return Node{Kind: KindBool, Bool: &q}
}

func RangeNode(q RangeQuery) Node {
	return Node{Kind: KindRange, Range: &q}
}

func TermNode(q TermQuery) Node {
	return Node{Kind: KindTerm, Term: &q}
}

// --- JSON wire format (spec.md §6: "Query AST is transmitted as a JSON
// document") ---

type wireNode struct {
	Type  Kind            `json:"type"`
	Bool  *wireBoolQuery  `json:"bool,omitempty"`
	Range *wireRangeQuery `json:"range,omitempty"`
	Term  *TermQuery      `json:"term,omitempty"`
}

// wireBoolQuery's clause lists are carried as raw JSON, not []wireNode:
// wireNode only models the four variants this package knows about, so
// round-tripping a nested opaque child (a phrase/wildcard/boost clause
// under must/should/filter/must_not) through it would drop every field
// but "type". Keeping each child as json.RawMessage and delegating to
// Node's own Marshal/UnmarshalJSON (which already preserves opaque
// bodies verbatim) avoids that lossy detour entirely.
type wireBoolQuery struct {
	Must    []json.RawMessage `json:"must,omitempty"`
	Should  []json.RawMessage `json:"should,omitempty"`
	Filter  []json.RawMessage `json:"filter,omitempty"`
	MustNot []json.RawMessage `json:"must_not,omitempty"`
}

type wireBound struct {
	Kind  string      `json:"kind"`
	Value JSONLiteral `json:"value,omitempty"`
}

type wireRangeQuery struct {
	Field      string    `json:"field"`
	LowerBound wireBound `json:"lower_bound"`
	UpperBound wireBound `json:"upper_bound"`
}

func boundToWire(b Bound[JSONLiteral]) wireBound {
	switch b.Kind {
	case Included:
		return wireBound{Kind: "included", Value: b.Value}
	case Excluded:
		return wireBound{Kind: "excluded", Value: b.Value}
	default:
		return wireBound{Kind: "unbounded"}
	}
}

func boundFromWire(w wireBound) Bound[JSONLiteral] {
	switch w.Kind {
	case "included":
		return IncludedBound(w.Value)
	case "excluded":
		return ExcludedBound(w.Value)
	default:
		return UnboundedBound[JSONLiteral]()
	}
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindMatchAll:
		return json.Marshal(wireNode{Type: KindMatchAll})
	case KindBool:
		if n.Bool == nil {
			return nil, fmt.Errorf("queryast: bool node missing BoolQuery")
		}
		return json.Marshal(wireNode{Type: KindBool, Bool: boolToWire(*n.Bool)})
	case KindRange:
		if n.Range == nil {
			return nil, fmt.Errorf("queryast: range node missing RangeQuery")
		}
		return json.Marshal(wireNode{Type: KindRange, Range: &wireRangeQuery{
			Field:      n.Range.Field,
			LowerBound: boundToWire(n.Range.LowerBound),
			UpperBound: boundToWire(n.Range.UpperBound),
		}})
	case KindTerm:
		if n.Term == nil {
			return nil, fmt.Errorf("queryast: term node missing TermQuery")
		}
		return json.Marshal(wireNode{Type: KindTerm, Term: n.Term})
	default:
		if n.Raw == nil {
			return []byte("null"), nil
		}
		return n.Raw, nil
	}
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("queryast: decode node: %w", err)
	}
	switch w.Type {
	case KindMatchAll:
		*n = MatchAll()
	case KindBool:
		if w.Bool == nil {
			return fmt.Errorf("queryast: bool node missing body")
		}
		*n = BoolNode(boolFromWire(*w.Bool))
	case KindRange:
		if w.Range == nil {
			return fmt.Errorf("queryast: range node missing body")
		}
		*n = RangeNode(RangeQuery{
			Field:      w.Range.Field,
			LowerBound: boundFromWire(w.Range.LowerBound),
			UpperBound: boundFromWire(w.Range.UpperBound),
		})
	case KindTerm:
		if w.Term == nil {
			return fmt.Errorf("queryast: term node missing body")
		}
		*n = TermNode(*w.Term)
	default:
		*n = Node{Kind: KindOpaque, Raw: append(json.RawMessage(nil), b...)}
	}
	return nil
}

func boolToWire(q BoolQuery) *wireBoolQuery {
	return &wireBoolQuery{
		Must:    nodesToWire(q.Must),
		Should:  nodesToWire(q.Should),
		Filter:  nodesToWire(q.Filter),
		MustNot: nodesToWire(q.MustNot),
	}
}

func boolFromWire(w wireBoolQuery) BoolQuery {
	return BoolQuery{
		Must:    nodesFromWire(w.Must),
		Should:  nodesFromWire(w.Should),
		Filter:  nodesFromWire(w.Filter),
		MustNot: nodesFromWire(w.MustNot),
	}
}

func nodesToWire(nodes []Node) []json.RawMessage {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]json.RawMessage, len(nodes))
	for i, n := range nodes {
		b, _ := n.MarshalJSON()
		out[i] = append(json.RawMessage(nil), b...)
	}
	return out
}

func nodesFromWire(wire []json.RawMessage) []Node {
	if len(wire) == 0 {
		return nil
	}
	out := make([]Node, len(wire))
	for i, raw := range wire {
		var n Node
		_ = n.UnmarshalJSON(raw)
		out[i] = n
	}
	return out
}

// ParseJSON decodes a query AST from the wire JSON format (spec.md §6).
func ParseJSON(s string) (Node, error) {
	var n Node
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return Node{}, fmt.Errorf("queryast: invalid query_ast: %w", err)
	}
	return n, nil
}

// String renders the AST back to its wire JSON form.
func (n Node) String() string {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Sprintf("<invalid queryast: %v>", err)
	}
	return string(b)
}
