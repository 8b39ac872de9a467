package splitcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_PutGetRoundTrip(t *testing.T) {
	c := NewResultCache(1 << 20)
	key := ResultCacheKey{SplitID: "s1", RewrittenASTJSON: `{"match_all":{}}`, MaxHits: 10}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, []byte("cached-response"))
	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "cached-response", string(v))
}

func TestResultCache_DifferentRewrittenASTsAreDistinctKeys(t *testing.T) {
	c := NewResultCache(1 << 20)
	a := ResultCacheKey{SplitID: "s1", RewrittenASTJSON: `{"term":{"a":"x"}}`, MaxHits: 10}
	b := ResultCacheKey{SplitID: "s1", RewrittenASTJSON: `{"term":{"a":"y"}}`, MaxHits: 10}

	c.Put(a, []byte("resp-a"))
	_, ok := c.Get(b)
	assert.False(t, ok, "a differently-rewritten AST must not hit a's cache entry")
}

func TestResultCache_SameKeyDifferentSplitsAreDistinct(t *testing.T) {
	c := NewResultCache(1 << 20)
	k1 := ResultCacheKey{SplitID: "s1", RewrittenASTJSON: `{"match_all":{}}`}
	k2 := ResultCacheKey{SplitID: "s2", RewrittenASTJSON: `{"match_all":{}}`}

	c.Put(k1, []byte("resp-1"))
	_, ok := c.Get(k2)
	assert.False(t, ok)
}

func TestResultCache_PutJSON(t *testing.T) {
	c := NewResultCache(1 << 20)
	key := ResultCacheKey{SplitID: "s1"}
	require.NoError(t, c.PutJSON(key, map[string]int{"num_hits": 3}))

	v, ok := c.Get(key)
	require.True(t, ok)
	assert.JSONEq(t, `{"num_hits":3}`, string(v))
}
