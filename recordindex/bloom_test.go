package recordindex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_AddAndMightContain(t *testing.T) {
	f := NewFilter(100, 0.01)
	f.Add([]byte("present-id"))

	assert.True(t, f.MightContain([]byte("present-id")))
}

func TestFilter_AbsentIDsMostlyRejected(t *testing.T) {
	f := NewFilter(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("present-%d", i)))
	}

	falsePositives := 0
	for i := 0; i < 1000; i++ {
		if f.MightContain([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}
	// sized for a 1% FP rate; allow generous slack since this is a
	// probabilistic structure, not an exact one.
	assert.Less(t, falsePositives, 100)
}

func TestFilter_MarshalUnmarshalRoundTrip(t *testing.T) {
	f := NewFilter(10, 0.01)
	f.Add([]byte("x"))

	data := f.Marshal()
	restored := UnmarshalFilter(data)
	require.True(t, restored.MightContain([]byte("x")))
}
