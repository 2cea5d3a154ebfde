package minmaxtree

import (
	"testing"

	"github.com/colstore/secondary/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaves(vals ...uint64) []Node {
	out := make([]Node, len(vals)/2)
	for i := range out {
		out[i] = Node{Min: vals[2*i], Max: vals[2*i+1]}
	}

	return out
}

func TestBuild_RootIsSupersetOfLeaves(t *testing.T) {
	tr := Build(leaves(1, 5, 10, 12, 3, 3, 100, 200, 0, 1))
	root := tr.Root()
	assert.Equal(t, uint64(0), root.Min)
	assert.Equal(t, uint64(200), root.Max)
	assert.Equal(t, 5, tr.LeafCount())
}

func TestBuild_EmptyTreeRootIsZero(t *testing.T) {
	tr := Build(nil)
	assert.Equal(t, Node{}, tr.Root())
	assert.Equal(t, 0, tr.LeafCount())
}

func TestEval_PrunesNonMatchingSubtrees(t *testing.T) {
	tr := Build(leaves(0, 10, 20, 30, 1000, 1010, 40, 50, 5, 8, 9000, 9001, 60, 70, 80, 90))

	tester := BlockTesterFunc(func(min, max uint64) bool {
		return min <= 25 && max >= 0
	})

	res := tr.Eval(tester, EvalOptions{RowsPerBlock: 1})
	for _, idx := range res.Blocks {
		leaf := tr.Leaf(idx)
		assert.True(t, leaf.Min <= 25)
	}
	assert.Contains(t, res.Blocks, 0)
	assert.Contains(t, res.Blocks, 1)
	assert.Contains(t, res.Blocks, 4)
	assert.NotContains(t, res.Blocks, 2)
	assert.NotContains(t, res.Blocks, 5)
}

func TestEval_CountOnlyCountsLeavesUnderRaisedStopLevel(t *testing.T) {
	tr := Build(leaves(0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1))

	always := BlockTesterFunc(func(min, max uint64) bool { return true })
	exact := tr.Eval(always, EvalOptions{RowsPerBlock: 1})
	approx := tr.Eval(always, EvalOptions{RowsPerBlock: 1, CountOnly: true, StopLevelRaise: 2})

	assert.Equal(t, int64(8), exact.Count)
	assert.Equal(t, int64(8), approx.Count)
	assert.Empty(t, approx.Blocks)
}

func TestEval_RowIDBoundedExcludesOutOfRangeBlocks(t *testing.T) {
	tr := Build(leaves(0, 1, 0, 1, 0, 1, 0, 1))
	always := BlockTesterFunc(func(min, max uint64) bool { return true })

	res := tr.Eval(always, EvalOptions{
		RowsPerBlock: 10,
		RowIDBounded: true,
		RowIDMin:     15,
		RowIDMax:     25,
	})

	assert.Equal(t, []int{1, 2}, res.Blocks)
}

func TestMultiEval_ConjunctionOfTwoAttributes(t *testing.T) {
	treeA := Build(leaves(0, 10, 20, 30, 40, 50, 60, 70))
	treeB := Build(leaves(100, 110, 100, 110, 999, 999, 100, 110))

	// Interval-intersection testers: conservative on internal nodes, which
	// is what the descent contract requires.
	testA := BlockTesterFunc(func(min, max uint64) bool { return min <= 50 })
	testB := BlockTesterFunc(func(min, max uint64) bool { return min <= 110 && max >= 100 })

	res := MultiEval([]AttrBound{{Tree: treeA, Tester: testA}, {Tree: treeB, Tester: testB}},
		EvalOptions{RowsPerBlock: 1})

	assert.Equal(t, []int{0, 1}, res.Blocks)
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	tr := Build(leaves(0, 10, 20, 30, 40, 50, 60, 70, 80, 90))

	for _, at := range []format.AttrType{format.AttrU32, format.AttrU64, format.AttrI64, format.AttrF32, format.AttrBool} {
		var input *Tree
		if at == format.AttrBool {
			input = Build(leaves(0, 1, 0, 0, 1, 1, 0, 1, 1, 1))
		} else {
			input = tr
		}

		blob := Marshal(input, at)
		out, consumed, err := Unmarshal(blob, at, input.LeafCount())
		require.NoError(t, err)
		assert.Equal(t, len(blob), consumed)
		assert.Equal(t, input.Root(), out.Root())
		assert.Equal(t, input.LeafCount(), out.LeafCount())
		for i := 0; i < input.LeafCount(); i++ {
			assert.Equal(t, input.Leaf(i), out.Leaf(i))
		}
	}
}
