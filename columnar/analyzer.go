package columnar

import (
	"fmt"

	"github.com/colstore/secondary/errs"
)

// analyzer is the full-column scan: it walks every block in order,
// decodes subblock-sized slices into its own scratch, evaluates the
// per-value predicate, and emits matching row IDs. It is the fallback when
// block pruning declines or when the host prefers a direct scan over
// iterator construction.
type analyzer struct {
	cutoffState

	col    *Columnar
	attr   int
	filter *Filter

	minRow uint32
	maxRow uint32 // exclusive

	row uint32 // next row to examine

	bv       *blockValues
	bvBlock  int
	out      []uint32
	err      error
	finished bool
}

func newAnalyzer(col *Columnar, attr int, filter *Filter, minRow, maxRow uint32) *analyzer {
	a := &analyzer{
		cutoffState: newCutoffState(),
		col:         col,
		attr:        attr,
		filter:      filter,
		minRow:      minRow,
		maxRow:      maxRow,
		row:         minRow,
		bvBlock:     -1,
	}

	return a
}

func (a *analyzer) Err() error { return a.err }

func (a *analyzer) Hint(rowID uint32) bool {
	if a.finished {
		return false
	}
	if rowID > a.row {
		a.row = rowID
	}

	return a.row < a.maxRow
}

func (a *analyzer) NextBlock() ([]uint32, bool) {
	if a.finished || a.err != nil {
		return nil, false
	}

	subblockSize := uint32(a.col.footer.settings.subblockSize)

	for a.row < a.maxRow {
		blockIdx := int(a.row / RowsPerBlock)
		if blockIdx != a.bvBlock {
			bv, err := a.col.BlockValues(a.attr, blockIdx)
			if err != nil {
				a.err = fmt.Errorf("analyzer: %w", err)
				a.finished = true

				return nil, false
			}
			a.bv = bv
			a.bvBlock = blockIdx
		}

		blockStart := uint32(blockIdx) * RowsPerBlock

		// Scan one subblock's worth of rows per pass so cutoff and hint
		// stay responsive on long columns.
		subStart := a.row - (a.row-blockStart)%subblockSize
		subEnd := subStart + subblockSize
		if subEnd > blockStart+uint32(len(a.bv.keys)) {
			subEnd = blockStart + uint32(len(a.bv.keys))
		}
		if subEnd > a.maxRow {
			subEnd = a.maxRow
		}

		a.out = a.out[:0]
		for r := a.row; r < subEnd; r++ {
			i := int(r - blockStart)
			if a.bv.present != nil && !a.bv.present[i] {
				continue
			}
			if a.filter.test(a.bv.keys[i]) != a.filter.Exclude {
				a.out = append(a.out, r)
			}
		}
		a.row = subEnd

		if len(a.out) == 0 {
			continue
		}

		chunk := a.clamp(a.out)
		if chunk == nil {
			a.finished = true

			return nil, false
		}

		return chunk, true
	}

	a.finished = true

	return nil, false
}

// CreateAnalyzer builds a full-scan iterator over attr's rows in
// [opts.MinRowID, opts.MaxRowID), applying the filter to every stored
// value. Unlike CreateIterator it never consults the min/max tree or the
// secondary index.
func (c *Columnar) CreateAnalyzer(f *Filter, opts QueryOptions) (Iterator, error) {
	attr, ok := c.byName[f.Attr]
	if !ok || !c.footer.isEnabled(attr) {
		return nil, fmt.Errorf("%w: %q", errs.ErrAttributeNotFound, f.Attr)
	}
	if c.headers[attr].attrType.IsMVA() {
		// Set attributes store only a representative element per row in
		// the value blocks; scanning them would under-match. Set filters
		// go through CreateIterator, whose row lists carry every element.
		return nil, fmt.Errorf("%w: set attribute %q cannot be analyzed",
			errs.ErrUnknownAttributeType, f.Attr)
	}

	minRow, maxRow := opts.window(c.headers[attr].totalRows)
	a := newAnalyzer(c, attr, f, minRow, maxRow)
	if opts.Cutoff >= 0 {
		a.SetCutoff(opts.Cutoff)
	}

	return a, nil
}
