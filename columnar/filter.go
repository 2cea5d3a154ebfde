package columnar

import (
	"github.com/colstore/secondary/format"
	"github.com/colstore/secondary/minmaxtree"
)

// Bound is one endpoint of a RangeSpec.
type Bound struct {
	Present   bool
	Value     uint64
	Inclusive bool
}

// RangeSpec is the single runtime range representation used for every
// comparison shape: one-sided, two-sided, open, closed. The sixteen
// open/closed/bounded/unbounded permutations collapse into one hot
// comparison instead of a compile-time fanout.
type RangeSpec struct {
	Lo Bound
	Hi Bound
}

// Test reports whether key satisfies the range.
func (r RangeSpec) Test(key uint64) bool {
	if r.Lo.Present {
		if key < r.Lo.Value || (key == r.Lo.Value && !r.Lo.Inclusive) {
			return false
		}
	}
	if r.Hi.Present {
		if key > r.Hi.Value || (key == r.Hi.Value && !r.Hi.Inclusive) {
			return false
		}
	}

	return true
}

// Intersects reports whether any key in [min, max] could satisfy the
// range; it is the block-pruning test and must never report false for a
// truly intersecting block.
func (r RangeSpec) Intersects(min, max uint64) bool {
	if r.Lo.Present {
		if max < r.Lo.Value || (max == r.Lo.Value && !r.Lo.Inclusive) {
			return false
		}
	}
	if r.Hi.Present {
		if min > r.Hi.Value || (min == r.Hi.Value && !r.Hi.Inclusive) {
			return false
		}
	}

	return true
}

// GtE builds a one-sided >= range.
func GtE(v uint64) RangeSpec {
	return RangeSpec{Lo: Bound{Present: true, Value: v, Inclusive: true}}
}

// LtE builds a one-sided <= range.
func LtE(v uint64) RangeSpec {
	return RangeSpec{Hi: Bound{Present: true, Value: v, Inclusive: true}}
}

// Between builds a closed [lo, hi] range.
func Between(lo, hi uint64) RangeSpec {
	return RangeSpec{
		Lo: Bound{Present: true, Value: lo, Inclusive: true},
		Hi: Bound{Present: true, Value: hi, Inclusive: true},
	}
}

// Filter is one predicate over a single attribute, expressed in storage
// keys (see I64Key and friends for the mapping). Exactly one of Values and
// Range is set. Exclude inverts the match over the queried row window.
type Filter struct {
	Attr    string
	Exclude bool

	// Values is a set filter: key ∈ Values. String equality filters probe
	// with StringKey(s).
	Values []uint64

	// Range is a range filter over the key order.
	Range *RangeSpec
}

// test evaluates the non-excluded form of the filter against one key.
func (f *Filter) test(key uint64) bool {
	if f.Range != nil {
		return f.Range.Test(key)
	}
	for _, v := range f.Values {
		if key == v {
			return true
		}
	}

	return false
}

// blockTester builds the min/max pruning test for this filter. For value
// sets the block passes if any probe value falls inside [min, max]; for
// ranges it is the interval intersection.
func (f *Filter) blockTester() minmaxtree.BlockTester {
	if f.Range != nil {
		r := *f.Range

		return minmaxtree.BlockTesterFunc(func(min, max uint64) bool {
			return r.Intersects(min, max)
		})
	}

	values := f.Values

	return minmaxtree.BlockTesterFunc(func(min, max uint64) bool {
		for _, v := range values {
			if v >= min && v <= max {
				return true
			}
		}

		return false
	})
}

// isFilterDegenerate recognizes filters that match every row and therefore
// produce no useful prefilter. Only the boolean-range-covering-{0,1} shape
// is recognized; other trivially-true filters (a full-width integer range,
// a values set naming every distinct value) are deliberately not detected.
// TODO: extend to full-domain integer ranges once the host can report how
// often they occur.
func isFilterDegenerate(f *Filter, attrType format.AttrType) bool {
	if attrType != format.AttrBool || f.Range == nil || f.Exclude {
		return false
	}

	return f.Range.Test(0) && f.Range.Test(1)
}
