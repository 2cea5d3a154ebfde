package pgm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedKeys(n int, step uint64) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(i) * step
	}

	return out
}

func TestSearch_BoundsContainTruePosition(t *testing.T) {
	keys := sortedKeys(5000, 7)
	idx := BuildWithEpsilon(keys, 16)

	for i := 0; i < len(keys); i += 37 {
		res := idx.Search(keys[i])
		assert.LessOrEqual(t, res.Lo, i, "key %d", keys[i])
		assert.GreaterOrEqual(t, res.Hi, i, "key %d", keys[i])
		assert.LessOrEqual(t, res.Lo, res.Pos)
		assert.LessOrEqual(t, res.Pos, res.Hi)
	}
}

func TestSearch_NonUniformSpacingStillBounds(t *testing.T) {
	var keys []uint64
	v := uint64(0)
	for i := 0; i < 2000; i++ {
		if i%500 == 0 {
			v += 10000
		} else {
			v += 3
		}
		keys = append(keys, v)
	}

	idx := BuildWithEpsilon(keys, 8)
	for i, k := range keys {
		res := idx.Search(k)
		assert.LessOrEqual(t, res.Lo, i)
		assert.GreaterOrEqual(t, res.Hi, i)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := Build(nil)
	res := idx.Search(42)
	assert.Equal(t, Result{Pos: 0, Lo: 0, Hi: 0}, res)
}

func TestRangeSearch_UnboundedSidesUseExtrema(t *testing.T) {
	keys := sortedKeys(100, 10)
	idx := BuildWithEpsilon(keys, 4)

	lo, hi := idx.RangeSearch(0, 0, true, true)
	assert.Equal(t, 0, lo)
	assert.Equal(t, idx.Len()-1, hi)

	lo, hi = idx.RangeSearch(keys[20], keys[40], false, false)
	assert.LessOrEqual(t, lo, 20)
	assert.GreaterOrEqual(t, hi, 40)
}

func TestF32Key_RejectsNaN(t *testing.T) {
	_, err := F32Key(float32(math.NaN()))
	require.Error(t, err)
}

func TestBuildF32_OrdersNonNegativeValues(t *testing.T) {
	idx, err := BuildF32([]float32{0, 1.5, 2.25, 3, 100})
	require.NoError(t, err)
	assert.Equal(t, 5, idx.Len())
}

func TestMarshalUnmarshal_PreservesSearchResults(t *testing.T) {
	keys := sortedKeys(3000, 5)
	idx := BuildWithEpsilon(keys, 16)

	blob := Marshal(idx)
	out, consumed, err := Unmarshal(blob)
	require.NoError(t, err)
	assert.Equal(t, len(blob), consumed)

	for i := 0; i < len(keys); i += 97 {
		want := idx.Search(keys[i])
		got := out.Search(keys[i])
		assert.Equal(t, want, got)
	}
}
