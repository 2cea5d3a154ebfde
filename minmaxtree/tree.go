// Package minmaxtree implements a per-attribute complete binary tree of
// (min,max) summaries over leaf blocks. The tree's only job is to descend
// and prune; the predicate-to-bounds test is supplied by the caller as a
// BlockTester, so the same descent serves value filters, range filters,
// and multi-attribute conjunctions without the tree knowing any of them.
package minmaxtree

// Node is one (min, max) summary, either a leaf (one block) or an internal
// node (min(children.min), max(children.max)).
type Node struct {
	Min uint64
	Max uint64
}

// Tree is a complete binary tree built bottom-up from leaf nodes.
// levels[0] is the root level; levels[len(levels)-1] is the leaf level,
// one node per block.
type Tree struct {
	levels []([]Node)
}

// Build constructs a Tree from the leaf (min,max) pairs, one per block, in
// block order. An empty leaves slice produces a tree with one empty level.
func Build(leaves []Node) *Tree {
	if len(leaves) == 0 {
		return &Tree{levels: [][]Node{{}}}
	}

	bottomUp := [][]Node{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([]Node, (len(cur)+1)/2)
		for i := range next {
			left := cur[2*i]
			if 2*i+1 < len(cur) {
				right := cur[2*i+1]
				next[i] = Node{Min: minU64(left.Min, right.Min), Max: maxU64(left.Max, right.Max)}
			} else {
				next[i] = left
			}
		}
		bottomUp = append(bottomUp, next)
		cur = next
	}

	levels := make([][]Node, len(bottomUp))
	for i, l := range bottomUp {
		levels[len(bottomUp)-1-i] = l
	}

	return &Tree{levels: levels}
}

// LeafCount returns the number of leaf blocks (0 for an empty tree).
func (t *Tree) LeafCount() int {
	return len(t.levels[len(t.levels)-1])
}

// Depth returns the number of levels, including root and leaf levels.
func (t *Tree) Depth() int {
	return len(t.levels)
}

// Root returns the root node's bounds. Valid even for an empty tree
// (returns the zero Node): an all-empty leaf keeps (0,0) rather than a
// sentinel, at the known cost of false positives for filters such as
// ANY() >= 0.
func (t *Tree) Root() Node {
	if len(t.levels[0]) == 0 {
		return Node{}
	}

	return t.levels[0][0]
}

// Leaf returns the bounds of leaf block i.
func (t *Tree) Leaf(i int) Node {
	return t.levels[len(t.levels)-1][i]
}

// BlockTester decides whether a node's (min,max) bounds can possibly
// contain a value satisfying the filter. It must never return false for a
// node whose bounds do intersect the filter (that would cause false
// negatives beyond what cutoff already permits); returning true
// conservatively is always safe.
type BlockTester interface {
	Test(min, max uint64) bool
}

// BlockTesterFunc adapts a function to BlockTester.
type BlockTesterFunc func(min, max uint64) bool

func (f BlockTesterFunc) Test(min, max uint64) bool { return f(min, max) }

// EvalOptions parameterizes a descent along its two independent axes:
// rowid-range-bounded and count-only.
type EvalOptions struct {
	// RowsPerBlock is the number of rows summarized by one leaf; required
	// to compute node-implied row-ID ranges and the stop-level row width.
	RowsPerBlock int

	// RowIDBounded, RowIDMin, RowIDMax: when RowIDBounded is true, nodes
	// whose implied row-ID interval falls entirely outside
	// [RowIDMin, RowIDMax) are pruned without consulting the BlockTester.
	RowIDBounded bool
	RowIDMin     uint64
	RowIDMax     uint64

	// CountOnly raises the stop level by up to StopLevelRaise (capped at 3
	// by Eval) to produce a cheap, possibly-overcounted cardinality
	// estimate instead of an exact leaf-block set; every raised level
	// doubles the row span each accounted node stands for.
	CountOnly      bool
	StopLevelRaise int
}

// EvalResult holds the outcome of a descent.
type EvalResult struct {
	// Blocks holds the matching leaf-block indices, only populated when
	// !CountOnly.
	Blocks []int

	// Count is the number of leaf blocks accounted for by matching nodes.
	// When CountOnly stops above the leaf level, each matching node
	// contributes the number of leaves beneath it (an overcount relative
	// to testing every leaf individually, by design).
	Count int64
}

// Eval descends the tree, applying tester at every visited node and
// optionally the row-ID bound, and returns either the exact matching leaf
// set or a cheap overcounted estimate.
func (t *Tree) Eval(tester BlockTester, opts EvalOptions) EvalResult {
	leafLevel := len(t.levels) - 1
	stopLevel := leafLevel
	if opts.CountOnly {
		raise := opts.StopLevelRaise
		if raise > 3 {
			raise = 3
		}
		stopLevel = leafLevel - raise
		if stopLevel < 0 {
			stopLevel = 0
		}
	}

	res := EvalResult{}
	if len(t.levels[0]) == 0 {
		return res
	}

	var descend func(level, idx int)
	descend = func(level, idx int) {
		node := t.levels[level][idx]
		if !tester.Test(node.Min, node.Max) {
			return
		}

		span := int64(1) << uint(leafLevel-level) // number of leaves under this node
		if opts.RowIDBounded && opts.RowsPerBlock > 0 {
			lo := uint64(idx) * uint64(span) * uint64(opts.RowsPerBlock)
			hi := lo + uint64(span)*uint64(opts.RowsPerBlock)
			if hi <= opts.RowIDMin || lo >= opts.RowIDMax {
				return
			}
		}

		if level >= stopLevel {
			res.Count += span
			if !opts.CountOnly {
				first := idx * int(span)
				last := first + int(span)
				if last > len(t.levels[leafLevel]) {
					last = len(t.levels[leafLevel])
				}
				for i := first; i < last; i++ {
					res.Blocks = append(res.Blocks, i)
				}
			}

			return
		}

		children := t.levels[level+1]
		left := idx * 2
		descend(level+1, left)
		if left+1 < len(children) {
			descend(level+1, left+1)
		}
	}

	descend(0, 0)

	return res
}

// CheckSound verifies that every internal node's bounds equal the fold of
// its children's: n.Min == min(children.Min), n.Max == max(children.Max).
// Used by storage checking; a sound tree can still over-approximate at the
// leaf level (the all-empty-leaf (0,0) case), which this does not flag.
func (t *Tree) CheckSound() bool {
	for level := 0; level < len(t.levels)-1; level++ {
		children := t.levels[level+1]
		for i, n := range t.levels[level] {
			left := 2 * i
			if left >= len(children) {
				return false
			}
			want := children[left]
			if left+1 < len(children) {
				right := children[left+1]
				want = Node{Min: minU64(want.Min, right.Min), Max: maxU64(want.Max, right.Max)}
			}
			if n != want {
				return false
			}
		}
	}

	return true
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}

	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}

	return b
}
