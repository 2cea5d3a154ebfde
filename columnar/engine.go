package columnar

import (
	"fmt"

	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/minmaxtree"
)

// Result-set shape policy thresholds: how an iterator construction
// decides between a merged list, a dense bitmap, and a sparse bitmap.
const (
	// denseDeclineRatio: when at least this share of all leaves survives
	// pruning, the prefilter buys nothing and is declined.
	denseDeclineRatio = 0.99

	// maxListIterators: below this many value-exact iterators the engine
	// returns a merged list instead of building a bitmap.
	maxListIterators = 8

	// splitBitmapMinRows and splitBitmapMaxRatio select the sparse,
	// chunked bitmap: a big row count with a tiny estimated match share.
	splitBitmapMinRows  = 262144
	splitBitmapMaxRatio = 0.01
)

// QueryOptions bounds one iterator construction.
type QueryOptions struct {
	// MinRowID / MaxRowID restrict emission to [MinRowID, MaxRowID).
	// A zero MaxRowID means the attribute's full row count.
	MinRowID uint32
	MaxRowID uint32

	// Cutoff, when >= 0, is a soft ceiling on rows emitted.
	Cutoff int64
}

func (o QueryOptions) window(totalRows uint64) (uint32, uint32) {
	maxRow := o.MaxRowID
	if maxRow == 0 || uint64(maxRow) > totalRows {
		maxRow = uint32(totalRows)
	}

	return o.MinRowID, maxRow
}

// EarlyReject reports whether the filter provably matches nothing, by
// testing it against the attribute's min/max root alone. A CONST column
// whose single value misses the filter rejects here without touching any
// block.
func (c *Columnar) EarlyReject(f *Filter) (bool, error) {
	attr, ok := c.byName[f.Attr]
	if !ok || !c.footer.isEnabled(attr) {
		return false, fmt.Errorf("%w: %q", errs.ErrAttributeNotFound, f.Attr)
	}
	if f.Exclude {
		return false, nil
	}

	h := c.headers[attr]
	if h.tree == nil || h.tree.LeafCount() == 0 {
		return false, nil
	}

	root := h.tree.Root()

	return !f.blockTester().Test(root.Min, root.Max), nil
}

// EstimateCount returns a cheap, possibly overcounted match estimate by
// descending the min/max tree in count-only mode with the stop level
// raised, so each accounted unit widens and fewer nodes are visited.
func (c *Columnar) EstimateCount(f *Filter) (int64, error) {
	attr, ok := c.byName[f.Attr]
	if !ok || !c.footer.isEnabled(attr) {
		return 0, fmt.Errorf("%w: %q", errs.ErrAttributeNotFound, f.Attr)
	}

	h := c.headers[attr]
	if h.tree == nil {
		return int64(h.totalRows), nil
	}

	res := h.tree.Eval(f.blockTester(), minmaxtree.EvalOptions{
		RowsPerBlock:   RowsPerBlock,
		CountOnly:      true,
		StopLevelRaise: 3,
	})

	count := res.Count * RowsPerBlock
	if count > int64(h.totalRows) {
		count = int64(h.totalRows)
	}

	return count, nil
}

// CreateIterator builds a row-ID iterator for the filter, or returns
// (nil, nil) when the prefilter is declined because the filter is
// degenerate. The result is value-exact, so it is not declined for a dense
// surviving block set. A declined prefilter is not an error; the host
// simply queries without one (or falls back to CreateAnalyzer).
func (c *Columnar) CreateIterator(f *Filter, opts QueryOptions) (Iterator, error) {
	attr, ok := c.byName[f.Attr]
	if !ok || !c.footer.isEnabled(attr) {
		return nil, fmt.Errorf("%w: %q", errs.ErrAttributeNotFound, f.Attr)
	}
	h := c.headers[attr]

	if isFilterDegenerate(f, h.attrType) {
		return nil, nil
	}

	minRow, maxRow := opts.window(h.totalRows)
	if minRow >= maxRow {
		return newEmptyIterator(), nil
	}

	// Min/max prune over the include form of the filter. Value-exact
	// iterators stay exact regardless of how many leaves survive, so the
	// dense-decline rule does not apply here (it only governs the
	// block-list prefilter, where enumeration cost scales with surviving
	// leaves); pruning is used purely as an early-out.
	if !f.Exclude && h.tree != nil && h.tree.LeafCount() > 0 {
		res := h.tree.Eval(f.blockTester(), minmaxtree.EvalOptions{
			RowsPerBlock: RowsPerBlock,
			RowIDBounded: true,
			RowIDMin:     uint64(minRow),
			RowIDMax:     uint64(maxRow),
		})
		if len(res.Blocks) == 0 {
			return newEmptyIterator(), nil
		}
	}

	entries, estimate, err := c.matchingEntries(attr, f)
	if err != nil {
		return nil, err
	}

	return c.shapeResult(attr, f, entries, estimate, minRow, maxRow, opts.Cutoff)
}

// matchingEntries resolves the filter to the distinct-value entries it
// selects, probing candidate value groups through the PGM bounds. The
// estimate is the sum of the PGM (hi - lo) bounds per probe, capped by the
// attribute's row count.
func (c *Columnar) matchingEntries(attr int, f *Filter) ([]valueEntry, int64, error) {
	h := c.headers[attr]
	sec, err := c.secondary(attr)
	if err != nil {
		return nil, 0, err
	}
	if h.pgmIndex == nil || sec.numDistinct == 0 {
		return nil, 0, nil
	}

	var entries []valueEntry
	var estimate int64

	if f.Range == nil {
		for _, v := range f.Values {
			res := h.pgmIndex.Search(v)
			estimate += int64(res.Hi - res.Lo)

			entry, err := sec.findValue(v, res.Lo, res.Hi)
			if err != nil {
				return nil, 0, err
			}
			if entry != nil {
				entries = append(entries, *entry)
			}
		}
	} else {
		r := *f.Range
		loOrd, hiOrd := h.pgmIndex.RangeSearch(
			r.Lo.Value, r.Hi.Value, !r.Lo.Present, !r.Hi.Present)
		estimate = int64(hiOrd - loOrd)

		firstGroup := loOrd / sec.subblockSize
		lastGroup := hiOrd / sec.subblockSize
		for g := firstGroup; g <= lastGroup && g < sec.numGroups(); g++ {
			group, err := sec.decodeGroup(g)
			if err != nil {
				return nil, 0, err
			}
			for i := range group {
				if r.Test(group[i].value) {
					entries = append(entries, group[i])
				}
			}
		}
	}

	if estimate > int64(h.totalRows) {
		estimate = int64(h.totalRows)
	}
	if estimate < int64(len(entries)) {
		estimate = int64(len(entries))
	}

	return entries, estimate, nil
}

// shapeResult applies the bitmap-vs-list policy to the matched entries.
func (c *Columnar) shapeResult(attr int, f *Filter, entries []valueEntry, estimate int64, minRow, maxRow uint32, cutoff int64) (Iterator, error) {
	h := c.headers[attr]

	children := make([]Iterator, len(entries))
	for i, e := range entries {
		children[i] = newRowListIterator(e, c.codec64, minRow, maxRow)
	}

	// Exclude filters always coalesce into a dense bitmap so the result
	// can be inverted after construction; the split bitmap cannot invert.
	if f.Exclude {
		dense := newDenseBitmap(maxRow)
		tripped := fillBitmap(dense.add, children, cutoff)
		if tripped {
			dense.trimToLastSet()
		}
		dense.invert(minRow)

		it := newBitmapIterator(dense.nextSet, minRow)
		if cutoff >= 0 {
			it.SetCutoff(cutoff)
		}

		return it, nil
	}

	if len(children) == 0 {
		return newEmptyIterator(), nil
	}

	if len(children) < maxListIterators {
		var it Iterator
		if len(children) == 1 {
			it = children[0]
		} else {
			it = newUnionIterator(children)
		}
		if cutoff >= 0 {
			it.SetCutoff(cutoff)
		}

		return it, nil
	}

	ratio := float64(estimate) / float64(h.totalRows)
	if h.totalRows > splitBitmapMinRows && ratio <= splitBitmapMaxRatio {
		split := newSplitBitmap()
		fillBitmap(split.add, children, cutoff)

		it := newBitmapIterator(split.scanner(), minRow)
		if cutoff >= 0 {
			it.SetCutoff(cutoff)
		}

		return it, nil
	}

	dense := newDenseBitmap(maxRow)
	fillBitmap(dense.add, children, cutoff)

	it := newBitmapIterator(dense.nextSet, minRow)
	if cutoff >= 0 {
		it.SetCutoff(cutoff)
	}

	return it, nil
}

// fillBitmap drains the children into add, stopping once rowsLeft is
// spent (cutoff < 0 means unbounded). It reports whether the cutoff
// tripped mid-fill.
func fillBitmap(add func(uint32), children []Iterator, cutoff int64) bool {
	rowsLeft := cutoff
	for _, child := range children {
		for {
			chunk, ok := child.NextBlock()
			if !ok {
				break
			}
			for _, row := range chunk {
				if cutoff >= 0 && rowsLeft == 0 {
					return true
				}
				add(row)
				if cutoff >= 0 {
					rowsLeft--
				}
			}
		}
	}

	return false
}

// CreateRowidPrefilter builds the block-list iterator: it enumerates
// every row ID in every leaf block whose
// (min,max) summary intersects the filter, without decoding any values.
// The result over-approximates the filter -- rows of a surviving block
// that do not match are still emitted -- which is the intended contract
// when the caller only wants min/max pruning as a coarse prefilter.
func (c *Columnar) CreateRowidPrefilter(f *Filter, opts QueryOptions) (Iterator, error) {
	attr, ok := c.byName[f.Attr]
	if !ok || !c.footer.isEnabled(attr) {
		return nil, fmt.Errorf("%w: %q", errs.ErrAttributeNotFound, f.Attr)
	}
	h := c.headers[attr]

	minRow, maxRow := opts.window(h.totalRows)
	if h.tree == nil || h.tree.LeafCount() == 0 || minRow >= maxRow {
		return newEmptyIterator(), nil
	}

	res := h.tree.Eval(f.blockTester(), minmaxtree.EvalOptions{
		RowsPerBlock: RowsPerBlock,
		RowIDBounded: true,
		RowIDMin:     uint64(minRow),
		RowIDMax:     uint64(maxRow),
	})
	if len(res.Blocks) == 0 {
		return newEmptyIterator(), nil
	}
	if float64(len(res.Blocks))/float64(h.numBlocks()) >= denseDeclineRatio {
		return nil, nil
	}

	it := newBlockListIterator(res.Blocks, uint32(h.totalRows), minRow, maxRow)
	if opts.Cutoff >= 0 {
		it.SetCutoff(opts.Cutoff)
	}

	return it, nil
}

// CreateMultiPrefilter builds one block-list iterator from the
// conjunction of several filters over different attributes, pruning every
// attribute's min/max tree in one shared descent. All named attributes
// must exist, be enabled, and hold the same row count. Like
// CreateRowidPrefilter, it returns (nil, nil) when the surviving block
// set is too dense to be worth enumerating.
func (c *Columnar) CreateMultiPrefilter(filters []*Filter, opts QueryOptions) (Iterator, error) {
	if len(filters) == 0 {
		return newEmptyIterator(), nil
	}

	bounds := make([]minmaxtree.AttrBound, 0, len(filters))
	var h *attrHeader
	for _, f := range filters {
		attr, ok := c.byName[f.Attr]
		if !ok || !c.footer.isEnabled(attr) {
			return nil, fmt.Errorf("%w: %q", errs.ErrAttributeNotFound, f.Attr)
		}
		ah := c.headers[attr]
		if h == nil {
			h = ah
		} else if ah.totalRows != h.totalRows {
			return nil, fmt.Errorf("%w: attributes %q and %q have different row counts",
				errs.ErrInvalidIndexOffsets, h.name, ah.name)
		}
		if ah.tree == nil {
			return newEmptyIterator(), nil
		}
		bounds = append(bounds, minmaxtree.AttrBound{Tree: ah.tree, Tester: f.blockTester()})
	}

	minRow, maxRow := opts.window(h.totalRows)
	res := minmaxtree.MultiEval(bounds, minmaxtree.EvalOptions{
		RowsPerBlock: RowsPerBlock,
		RowIDBounded: true,
		RowIDMin:     uint64(minRow),
		RowIDMax:     uint64(maxRow),
	})
	if len(res.Blocks) == 0 {
		return newEmptyIterator(), nil
	}
	if float64(len(res.Blocks))/float64(h.numBlocks()) >= denseDeclineRatio {
		return nil, nil
	}

	it := newBlockListIterator(res.Blocks, uint32(h.totalRows), minRow, maxRow)
	if opts.Cutoff >= 0 {
		it.SetCutoff(opts.Cutoff)
	}

	return it, nil
}
