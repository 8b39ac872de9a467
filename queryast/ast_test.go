package queryast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// nodeDiff reports the structural difference between two Node values, e.g.
// for the unexported JSONLiteral.raw field carried by Range bounds.
func nodeDiff(a, b Node) string {
	return cmp.Diff(a, b, cmp.AllowUnexported(JSONLiteral{}))
}

func TestNode_RoundTripsOpaqueChildNestedInBool(t *testing.T) {
	const wire = `{"type":"bool","bool":{"must":[{"type":"phrase","field":"message","phrase":"connection reset","slop":2}],"filter":[{"type":"term","term":{"field":"status","value":"500"}}]}}`

	parsed, err := ParseJSON(wire)
	require.NoError(t, err)
	require.Equal(t, KindBool, parsed.Kind)
	require.Len(t, parsed.Bool.Must, 1)

	opaqueChild := parsed.Bool.Must[0]
	require.Equal(t, KindOpaque, opaqueChild.Kind)
	require.JSONEq(t, `{"type":"phrase","field":"message","phrase":"connection reset","slop":2}`, string(opaqueChild.Raw))

	roundTripped, err := ParseJSON(parsed.String())
	require.NoError(t, err)
	if diff := nodeDiff(parsed, roundTripped); diff != "" {
		t.Fatalf("round trip through JSON changed the AST (-want +got):\n%s", diff)
	}
}

func TestNode_OpaqueChildSurvivesNestedUnderShouldAndMustNot(t *testing.T) {
	const wire = `{"type":"bool","bool":{"should":[{"type":"wildcard","field":"path","value":"/api/*"}],"must_not":[{"type":"fuzzy","field":"name","value":"jhon","distance":1}]}}`

	parsed, err := ParseJSON(wire)
	require.NoError(t, err)
	require.Len(t, parsed.Bool.Should, 1)
	require.Len(t, parsed.Bool.MustNot, 1)
	require.JSONEq(t, `{"type":"wildcard","field":"path","value":"/api/*"}`, string(parsed.Bool.Should[0].Raw))
	require.JSONEq(t, `{"type":"fuzzy","field":"name","value":"jhon","distance":1}`, string(parsed.Bool.MustNot[0].Raw))

	roundTripped, err := ParseJSON(parsed.String())
	require.NoError(t, err)
	if diff := nodeDiff(parsed, roundTripped); diff != "" {
		t.Fatalf("round trip through JSON changed the AST (-want +got):\n%s", diff)
	}
}

func TestNode_RangeBoundsRoundTrip(t *testing.T) {
	original := RangeNode(RangeQuery{
		Field:      "ts",
		LowerBound: IncludedBound(NewJSONLiteralInt64(100)),
		UpperBound: ExcludedBound(NewJSONLiteralInt64(200)),
	})

	roundTripped, err := ParseJSON(original.String())
	require.NoError(t, err)
	if diff := nodeDiff(original, roundTripped); diff != "" {
		t.Fatalf("round trip through JSON changed the AST (-want +got):\n%s", diff)
	}
}
