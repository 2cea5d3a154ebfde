package minmaxtree

// AttrBound pairs one attribute's tree with its BlockTester for
// conjunctive multi-attribute pruning: a node matches iff every included
// attribute's stored (min,max) intersects its filter.
//
// Conjunctive pruning over several attributes works because every
// attribute's block boundaries line up: the block packer buffers the same
// 65536-row window for every attribute in a column set, so tree node index
// i at level L always denotes the same set of row IDs in every attribute's
// tree. This lets MultiEval visit one shared (level, idx) position and
// consult each attribute's own Node there.
type AttrBound struct {
	Tree   *Tree
	Tester BlockTester
}

// MultiEval descends trees (which must all have the same depth) and
// returns the leaf-block set (or count) for which every AttrBound's tester
// returns true. Pruning correctness holds because an internal node's
// (min,max) is a superset bound of every descendant leaf's (min,max): if
// one attribute's node fails its test, no descendant leaf of that node can
// pass either, so the whole subtree is safely skipped without consulting
// the other attributes.
func MultiEval(bounds []AttrBound, opts EvalOptions) EvalResult {
	res := EvalResult{}
	if len(bounds) == 0 {
		return res
	}

	ref := bounds[0].Tree
	leafLevel := ref.Depth() - 1
	if len(ref.levels[0]) == 0 {
		return res
	}

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

	var descend func(level, idx int)
	descend = func(level, idx int) {
		for _, ab := range bounds {
			node := ab.Tree.levels[level][idx]
			if !ab.Tester.Test(node.Min, node.Max) {
				return
			}
		}

		span := int64(1) << uint(leafLevel-level)
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
				if last > len(ref.levels[leafLevel]) {
					last = len(ref.levels[leafLevel])
				}
				for i := first; i < last; i++ {
					res.Blocks = append(res.Blocks, i)
				}
			}

			return
		}

		children := ref.levels[level+1]
		left := idx * 2
		descend(level+1, left)
		if left+1 < len(children) {
			descend(level+1, left+1)
		}
	}

	descend(0, 0)

	return res
}
