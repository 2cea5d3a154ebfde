package columnar

import (
	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
)

// Two bitmap shapes back the bitmap-vs-list policy:
//
//   - denseBitmap: u64-backed, sized to the queried row window up front.
//     Supports invert, which is why exclude filters always land here.
//   - splitBitmap: Roaring-backed, 64K-chunked containers allocated
//     lazily. Chosen for very sparse results over large row counts;
//     scanning skips unallocated chunks. Invert is deliberately not
//     implemented on this shape.
//
// Both are build-then-scan: all adds happen during iterator construction,
// the scan side is read-only.

type denseBitmap struct {
	bits   *bitset.BitSet
	window uint32 // exclusive upper bound of the queried row window
}

func newDenseBitmap(window uint32) *denseBitmap {
	return &denseBitmap{bits: bitset.New(uint(window)), window: window}
}

func (b *denseBitmap) add(row uint32) {
	b.bits.Set(uint(row))
}

// nextSet returns the first set row >= from, scanning only inside the
// window.
func (b *denseBitmap) nextSet(from uint32) (uint32, bool) {
	i, ok := b.bits.NextSet(uint(from))
	if !ok || i >= uint(b.window) {
		return 0, false
	}

	return uint32(i), true
}

// invert flips every row in [min, window). Applying it twice restores the
// original set exactly.
func (b *denseBitmap) invert(min uint32) {
	b.bits.FlipRange(uint(min), uint(b.window))
}

// trimToLastSet shrinks the window to just past the highest set bit, so a
// later invert cannot set bits past the last row actually collected. Used
// when cutoff trips while the bitmap is being filled.
func (b *denseBitmap) trimToLastSet() {
	if b.bits.Len() == 0 {
		b.window = 0

		return
	}

	last, ok := prevSet(b.bits)
	if !ok {
		b.window = 0

		return
	}
	b.window = uint32(last) + 1
}

func prevSet(bs *bitset.BitSet) (uint, bool) {
	var last uint
	found := false
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		last = i
		found = true
	}

	return last, found
}

type splitBitmap struct {
	rb *roaring.Bitmap
}

func newSplitBitmap() *splitBitmap {
	return &splitBitmap{rb: roaring.New()}
}

func (b *splitBitmap) add(row uint32) {
	b.rb.Add(row)
}

// scanner returns a forward-only cursor; Roaring's AdvanceIfNeeded skips
// whole unallocated containers.
func (b *splitBitmap) scanner() func(from uint32) (uint32, bool) {
	it := b.rb.Iterator()

	return func(from uint32) (uint32, bool) {
		it.AdvanceIfNeeded(from)
		if !it.HasNext() {
			return 0, false
		}

		return it.Next(), true
	}
}
