// Package pgm implements a piecewise-linear approximate index over an
// ordered distinct-value sequence. It is built once per attribute, over
// the sorted list of distinct values the block packer observed, and
// answers Search(value) with an approximate ordinal position plus a
// [lo, hi] bound guaranteed to contain the true position.
package pgm

import (
	"math"
	"sort"

	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
)

// Segment is one piecewise-linear piece: for keys in [FirstKey, next
// segment's FirstKey), the approximate position is
// round(Slope*(key-FirstKey)) + FirstPos, clamped to [0, N-1].
type Segment struct {
	FirstKey uint64
	FirstPos int
	Slope    float64
}

// Index is the built PGM structure: a sorted distinct-key sequence
// compressed into segments plus the error bound used while building.
type Index struct {
	segments []Segment
	n        int
	epsilon  int
}

// Epsilon is the default half-width of the guaranteed error bound; 32
// matches the PGM-index reference implementation's usual default and
// keeps segment count low for the attribute cardinalities this system
// targets.
const Epsilon = 32

// Build constructs an Index over a strictly ascending, duplicate-free key
// sequence. Callers are responsible for sorting and deduplicating first (C1
// emits distinct values in sorted order already). An empty keys slice
// produces a valid, always-miss Index.
func Build(keys []uint64) *Index {
	return BuildWithEpsilon(keys, Epsilon)
}

// BuildWithEpsilon is Build with an explicit error bound, exposed for
// testing and for callers that want a denser or sparser index.
func BuildWithEpsilon(keys []uint64, epsilon int) *Index {
	idx := &Index{n: len(keys), epsilon: epsilon}
	if len(keys) == 0 {
		return idx
	}

	i := 0
	for i < len(keys) {
		seg, consumed := fitSegment(keys, i, epsilon)
		idx.segments = append(idx.segments, seg)
		i += consumed
	}

	return idx
}

// fitSegment grows a segment starting at start as long as every point seen
// so far stays within epsilon of the line from the first point to the
// newest one (shrinking-cone / PGM-style greedy fit).
func fitSegment(keys []uint64, start, epsilon int) (Segment, int) {
	first := keys[start]
	if start+1 == len(keys) {
		return Segment{FirstKey: first, FirstPos: start, Slope: 0}, 1
	}

	// Initial slope: fit the next point exactly.
	slope := slopeBetween(first, keys[start+1], 1)
	count := 2

	for start+count < len(keys) {
		candidateKey := keys[start+count]
		pos := predictPos(first, start, slope, candidateKey)
		if absInt(pos-(start+count)) <= epsilon {
			// Still within bound; tighten slope to keep every point seen
			// so far within the cone by recomputing a least-squares-free
			// bound: nudge slope toward the point that would otherwise
			// violate epsilon first. A simple, always-correct fallback is
			// to recompute slope against the farthest point and verify all
			// prior points still satisfy epsilon; with small segments this
			// stays cheap.
			newSlope := slopeBetween(first, candidateKey, count)
			if allWithin(keys, start, count+1, first, newSlope, epsilon) {
				slope = newSlope
				count++

				continue
			}
		}

		break
	}

	return Segment{FirstKey: first, FirstPos: start, Slope: slope}, count
}

func slopeBetween(firstKey, key uint64, deltaPos int) float64 {
	deltaKey := float64(key) - float64(firstKey)
	if deltaKey == 0 {
		return 0
	}

	return float64(deltaPos) / deltaKey
}

func allWithin(keys []uint64, start, count int, firstKey uint64, slope float64, epsilon int) bool {
	for i := 0; i < count; i++ {
		pos := predictPos(firstKey, start, slope, keys[start+i])
		if absInt(pos-(start+i)) > epsilon {
			return false
		}
	}

	return true
}

func predictPos(firstKey uint64, firstPos int, slope float64, key uint64) int {
	delta := float64(key) - float64(firstKey)

	return firstPos + int(math.Round(slope*delta))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}

	return v
}

// Result is the outcome of Search: lo <= pos <= hi bound the true ordinal
// of the query key (or of its insertion point, if absent).
type Result struct {
	Pos int
	Lo  int
	Hi  int
}

// Search returns an approximate position for value in the distinct-value
// stream the Index was built over. Callers convert pos/lo/hi to value
// group indices via `group = pos >> log2(subblock_size)`.
func (idx *Index) Search(value uint64) Result {
	if idx.n == 0 {
		return Result{Pos: 0, Lo: 0, Hi: 0}
	}

	segIdx := sort.Search(len(idx.segments), func(i int) bool {
		return idx.segments[i].FirstKey > value
	}) - 1
	if segIdx < 0 {
		segIdx = 0
	}

	seg := idx.segments[segIdx]
	pos := predictPos(seg.FirstKey, seg.FirstPos, seg.Slope, value)

	lo := pos - idx.epsilon
	hi := pos + idx.epsilon
	if lo < 0 {
		lo = 0
	}
	if hi > idx.n-1 {
		hi = idx.n - 1
	}
	if pos < lo {
		pos = lo
	}
	if pos > hi {
		pos = hi
	}

	return Result{Pos: pos, Lo: lo, Hi: hi}
}

// RangeSearch maps a range [a, b] to the candidate ordinal range: the
// union of Search(a)'s and Search(b)'s [lo, hi] bounds. An unbounded side
// uses the extremum ordinal of its end (0 or n-1).
func (idx *Index) RangeSearch(a, b uint64, loUnbounded, hiUnbounded bool) (lo, hi int) {
	if idx.n == 0 {
		return 0, 0
	}

	if loUnbounded {
		lo = 0
	} else {
		lo = idx.Search(a).Lo
	}

	if hiUnbounded {
		hi = idx.n - 1
	} else {
		hi = idx.Search(b).Hi
	}

	return lo, hi
}

// Len returns the number of distinct keys the Index was built over.
func (idx *Index) Len() int { return idx.n }

// Marshal serializes the segment list: [varint n][varint epsilon][varint
// segment count] then per segment [varint firstKey][varint firstPos][varint
// of the u64 slope bits].
func Marshal(idx *Index) []byte {
	buf := codec.AppendVarint(nil, uint64(idx.n))
	buf = codec.AppendVarint(buf, uint64(idx.epsilon))
	buf = codec.AppendVarint(buf, uint64(len(idx.segments)))

	for _, s := range idx.segments {
		buf = codec.AppendVarint(buf, s.FirstKey)
		buf = codec.AppendVarint(buf, uint64(s.FirstPos))
		buf = codec.AppendVarint(buf, math.Float64bits(s.Slope))
	}

	return buf
}

// Unmarshal parses a blob produced by Marshal.
func Unmarshal(data []byte) (*Index, int, error) {
	n, sz, ok := codec.ReadVarint(data)
	if !ok {
		return nil, 0, errs.ErrCorruptPGM
	}
	pos := sz

	epsilon, sz, ok := codec.ReadVarint(data[pos:])
	if !ok {
		return nil, 0, errs.ErrCorruptPGM
	}
	pos += sz

	segCount, sz, ok := codec.ReadVarint(data[pos:])
	if !ok {
		return nil, 0, errs.ErrCorruptPGM
	}
	pos += sz

	segments := make([]Segment, segCount)
	for i := range segments {
		firstKey, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, 0, errs.ErrCorruptPGM
		}
		pos += sz

		firstPos, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, 0, errs.ErrCorruptPGM
		}
		pos += sz

		slopeBits, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, 0, errs.ErrCorruptPGM
		}
		pos += sz

		segments[i] = Segment{
			FirstKey: firstKey,
			FirstPos: int(firstPos),
			Slope:    math.Float64frombits(slopeBits),
		}
	}

	return &Index{segments: segments, n: int(n), epsilon: int(epsilon)}, pos, nil
}
