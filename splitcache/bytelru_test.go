package splitcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteLRU_GetMiss(t *testing.T) {
	c := NewByteLRU(1024)
	_, ok := c.Get("missing")
	assert.False(t, ok)
	hits, misses := c.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestByteLRU_PutAndGet(t *testing.T) {
	c := NewByteLRU(1024)
	c.Put("a", []byte("hello"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "hello", string(v))
	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(0), misses)
}

func TestByteLRU_EvictsOldestWhenOverBudget(t *testing.T) {
	c := NewByteLRU(10)
	c.Put("a", []byte("01234")) // 5 bytes
	c.Put("b", []byte("56789")) // 5 bytes, total 10, within budget
	_, aOK := c.Get("a")
	_, bOK := c.Get("b")
	assert.True(t, aOK)
	assert.True(t, bOK)

	c.Put("c", []byte("abcde")) // pushes total to 15, evicts oldest (a)
	_, aOK = c.Get("a")
	_, cOK := c.Get("c")
	assert.False(t, aOK, "a should have been evicted to stay within budget")
	assert.True(t, cOK)
	assert.LessOrEqual(t, c.Bytes(), uint64(10))
}

func TestByteLRU_ReplacingKeyUpdatesByteTotal(t *testing.T) {
	c := NewByteLRU(1024)
	c.Put("a", []byte("short"))
	c.Put("a", []byte("a much longer value"))
	assert.Equal(t, uint64(len("a much longer value")), c.Bytes())
}

func TestByteLRU_OversizedSingleValueStillStored(t *testing.T) {
	c := NewByteLRU(4)
	big := []byte("this value is larger than the budget")
	c.Put("big", big)
	v, ok := c.Get("big")
	require.True(t, ok)
	assert.Equal(t, big, v)
}
