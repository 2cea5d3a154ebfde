package columnar

import (
	"github.com/colstore/secondary/block"
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// defaultChunkRows is the emission chunk size of the block-list, union and
// bitmap iterators. The analyzer emits subblock-sized chunks; a value-exact
// iterator emits a ROW_BLOCK list as one chunk and a ROW_BLOCKS_LIST one
// stored chunk at a time.
const defaultChunkRows = 1024

// Iterator is the shared row-ID stream contract. Implementations emit
// strictly ascending row IDs; Hint may only move forward; SetCutoff is a
// soft ceiling on total rows emitted, not a guarantee of exactness.
type Iterator interface {
	// Hint fast-forwards to the first candidate at or after rowID and
	// reports whether anything at all remains.
	Hint(rowID uint32) bool

	// NextBlock returns the next ascending chunk of row IDs, valid until
	// the following call, and false when exhausted.
	NextBlock() ([]uint32, bool)

	// Processed returns the number of row IDs emitted so far.
	Processed() int64

	// SetCutoff bounds the total rows this iterator may still emit.
	SetCutoff(n int64)

	// HitCutoff reports whether the cutoff tripped.
	HitCutoff() bool

	// Err surfaces the first I/O or corruption error; the iterator stops
	// emitting after one.
	Err() error
}

// cutoffState implements the shared cutoff bookkeeping. remaining < 0
// means no cutoff set.
type cutoffState struct {
	remaining int64
	tripped   bool
	processed int64
}

func newCutoffState() cutoffState {
	return cutoffState{remaining: -1}
}

func (c *cutoffState) SetCutoff(n int64) {
	c.remaining = n
}

func (c *cutoffState) HitCutoff() bool { return c.tripped }

func (c *cutoffState) Processed() int64 { return c.processed }

// clamp trims chunk to the remaining cutoff allowance and updates the
// processed count; it returns nil when the cutoff is spent.
func (c *cutoffState) clamp(chunk []uint32) []uint32 {
	if c.remaining == 0 {
		c.tripped = true

		return nil
	}
	if c.remaining > 0 && int64(len(chunk)) > c.remaining {
		chunk = chunk[:c.remaining]
		c.tripped = true
	}
	if c.remaining > 0 {
		c.remaining -= int64(len(chunk))
	}
	c.processed += int64(len(chunk))

	return chunk
}

// emptyIterator is the early-reject result: no rows, no error.
type emptyIterator struct{ cutoffState }

func newEmptyIterator() *emptyIterator {
	return &emptyIterator{cutoffState: newCutoffState()}
}

func (e *emptyIterator) Hint(uint32) bool            { return false }
func (e *emptyIterator) NextBlock() ([]uint32, bool) { return nil, false }
func (e *emptyIterator) Err() error                  { return nil }

// blockListIterator enumerates every row ID in a set of surviving leaf
// blocks without decoding values. Interior blocks
// need no re-testing; only the window edges are trimmed.
type blockListIterator struct {
	cutoffState

	blocks   []int // surviving leaf block indices, ascending
	blockIdx int   // position within blocks
	nextRow  uint32

	totalRows uint32
	minRow    uint32
	maxRow    uint32 // exclusive

	out []uint32
}

func newBlockListIterator(blocks []int, totalRows, minRow, maxRow uint32) *blockListIterator {
	it := &blockListIterator{
		cutoffState: newCutoffState(),
		blocks:      blocks,
		totalRows:   totalRows,
		minRow:      minRow,
		maxRow:      maxRow,
		out:         make([]uint32, 0, defaultChunkRows),
	}
	it.resetToBlock(0)

	return it
}

// blockRowRange returns the [start, end) row window of leaf block b,
// clipped to the iterator bounds.
func (it *blockListIterator) blockRowRange(b int) (uint32, uint32) {
	start := uint32(b) * RowsPerBlock
	end := start + RowsPerBlock
	if end > it.totalRows {
		end = it.totalRows
	}
	if start < it.minRow {
		start = it.minRow
	}
	if end > it.maxRow {
		end = it.maxRow
	}

	return start, end
}

func (it *blockListIterator) resetToBlock(idx int) {
	it.blockIdx = idx
	for it.blockIdx < len(it.blocks) {
		start, end := it.blockRowRange(it.blocks[it.blockIdx])
		if start < end {
			it.nextRow = start

			return
		}
		it.blockIdx++
	}
}

func (it *blockListIterator) Hint(rowID uint32) bool {
	for it.blockIdx < len(it.blocks) {
		_, end := it.blockRowRange(it.blocks[it.blockIdx])
		if end > rowID {
			if it.nextRow < rowID {
				it.nextRow = rowID
			}
			start, _ := it.blockRowRange(it.blocks[it.blockIdx])
			if it.nextRow < start {
				it.nextRow = start
			}

			return true
		}
		it.blockIdx++
		if it.blockIdx < len(it.blocks) {
			start, _ := it.blockRowRange(it.blocks[it.blockIdx])
			it.nextRow = start
		}
	}

	return false
}

func (it *blockListIterator) NextBlock() ([]uint32, bool) {
	for it.blockIdx < len(it.blocks) {
		start, end := it.blockRowRange(it.blocks[it.blockIdx])
		if it.nextRow < start {
			it.nextRow = start
		}
		if it.nextRow >= end {
			it.blockIdx++

			continue
		}

		chunkEnd := it.nextRow + defaultChunkRows
		if chunkEnd > end {
			chunkEnd = end
		}

		it.out = it.out[:0]
		for r := it.nextRow; r < chunkEnd; r++ {
			it.out = append(it.out, r)
		}
		it.nextRow = chunkEnd

		chunk := it.clamp(it.out)
		if chunk == nil {
			return nil, false
		}

		return chunk, true
	}

	return nil, false
}

func (it *blockListIterator) Err() error { return nil }

// rowListIterator streams the row IDs of one distinct value (the
// value-exact path). The three row-list kinds drive a small state
// machine: ROW emits a single row, ROW_BLOCK decodes once and emits one
// chunk, ROW_BLOCKS_LIST walks its chunk index lazily.
type rowListIterator struct {
	cutoffState

	entry valueEntry
	codec codec.Codec

	minRow uint32
	maxRow uint32 // exclusive

	started bool
	stopped bool
	hintRow uint32

	// ROW_BLOCKS_LIST state.
	list     *block.RowBlocksList
	chunkIdx int

	// Decoded rows pending emission.
	pending []uint32

	err error
}

func newRowListIterator(entry valueEntry, c codec.Codec, minRow, maxRow uint32) *rowListIterator {
	return &rowListIterator{
		cutoffState: newCutoffState(),
		entry:       entry,
		codec:       c,
		minRow:      minRow,
		maxRow:      maxRow,
	}
}

func (it *rowListIterator) Err() error { return it.err }

func (it *rowListIterator) fail(err error) ([]uint32, bool) {
	it.err = err
	it.stopped = true

	return nil, false
}

// clip filters decoded rows to [minRow, maxRow) and the forward hint.
func (it *rowListIterator) clip(rows []uint64) []uint32 {
	out := it.pending[:0]
	for _, r := range rows {
		r32 := uint32(r)
		if r32 < it.minRow || r32 < it.hintRow || r32 >= it.maxRow {
			continue
		}
		out = append(out, r32)
	}
	it.pending = out

	return out
}

func (it *rowListIterator) Hint(rowID uint32) bool {
	if it.stopped {
		return false
	}
	if rowID > it.hintRow {
		it.hintRow = rowID
	}
	if it.hintRow >= it.maxRow {
		it.stopped = true

		return false
	}

	// For chunked lists, skip whole chunks whose max falls below the hint.
	if it.started && it.list != nil {
		for it.chunkIdx < len(it.list.Chunks()) &&
			uint32(it.list.Chunks()[it.chunkIdx].Max) < it.hintRow {
			it.chunkIdx++
		}
		if it.chunkIdx == len(it.list.Chunks()) {
			it.stopped = true

			return false
		}
	}

	return true
}

func (it *rowListIterator) NextBlock() ([]uint32, bool) {
	if it.stopped {
		return nil, false
	}

	if !it.started {
		it.started = true
		switch it.entry.kind {
		case format.RowListRow:
			it.stopped = true
			chunk := it.clip([]uint64{it.entry.firstRow})
			if len(chunk) == 0 {
				return nil, false
			}
			chunk = it.clamp(chunk)

			return chunk, chunk != nil
		case format.RowListBlock:
			rows, err := block.DecodeRowBlock(it.entry.payload, it.codec)
			if err != nil {
				return it.fail(err)
			}
			it.stopped = true
			chunk := it.clip(rows)
			if len(chunk) == 0 {
				return nil, false
			}
			chunk = it.clamp(chunk)

			return chunk, chunk != nil
		case format.RowListBlocksList:
			list, err := block.ParseRowBlocksList(it.entry.payload, it.codec)
			if err != nil {
				return it.fail(err)
			}
			it.list = list
		default:
			return it.fail(errs.ErrUnknownRowListKind)
		}
	}

	// ROW_BLOCKS_LIST: decode matching chunks lazily.
	for it.chunkIdx < len(it.list.Chunks()) {
		chunk := it.list.Chunks()[it.chunkIdx]
		if uint32(chunk.Min) >= it.maxRow {
			break
		}
		if uint32(chunk.Max) < it.hintRow || uint32(chunk.Max) < it.minRow {
			it.chunkIdx++

			continue
		}

		rows, err := it.list.DecodeChunk(it.chunkIdx)
		if err != nil {
			return it.fail(err)
		}
		it.chunkIdx++

		out := it.clip(rows)
		if len(out) == 0 {
			continue
		}

		out = it.clamp(out)
		if out == nil {
			it.stopped = true

			return nil, false
		}

		return out, true
	}

	it.stopped = true

	return nil, false
}

// unionIterator merges a small number of value-exact iterators into one
// ascending stream. Distinct values occupy disjoint row sets within one
// attribute, so the merge never needs to deduplicate.
type unionIterator struct {
	cutoffState

	children []Iterator

	// Per-child lookahead chunk and cursor.
	chunks  [][]uint32
	cursors []int

	out []uint32
	err error
}

func newUnionIterator(children []Iterator) *unionIterator {
	return &unionIterator{
		cutoffState: newCutoffState(),
		children:    children,
		chunks:      make([][]uint32, len(children)),
		cursors:     make([]int, len(children)),
		out:         make([]uint32, 0, defaultChunkRows),
	}
}

func (it *unionIterator) Err() error { return it.err }

func (it *unionIterator) Hint(rowID uint32) bool {
	any := false
	for i, child := range it.children {
		if child == nil {
			continue
		}
		// Drop buffered rows that fall below the hint.
		for it.chunks[i] != nil && it.cursors[i] < len(it.chunks[i]) &&
			it.chunks[i][it.cursors[i]] < rowID {
			it.cursors[i]++
		}
		if it.chunks[i] != nil && it.cursors[i] < len(it.chunks[i]) {
			any = true

			continue
		}
		it.chunks[i] = nil
		if child.Hint(rowID) {
			any = true
		} else {
			if err := child.Err(); err != nil && it.err == nil {
				it.err = err
			}
			it.children[i] = nil
		}
	}

	return any
}

// refill ensures child i has a buffered chunk, pulling from the child if
// needed; returns false when the child is exhausted.
func (it *unionIterator) refill(i int) bool {
	if it.children[i] == nil {
		return false
	}
	for it.chunks[i] == nil || it.cursors[i] >= len(it.chunks[i]) {
		chunk, ok := it.children[i].NextBlock()
		if !ok {
			if err := it.children[i].Err(); err != nil && it.err == nil {
				it.err = err
			}
			it.children[i] = nil
			it.chunks[i] = nil

			return false
		}
		it.chunks[i] = chunk
		it.cursors[i] = 0
	}

	return true
}

func (it *unionIterator) NextBlock() ([]uint32, bool) {
	if it.err != nil {
		return nil, false
	}

	it.out = it.out[:0]
	for len(it.out) < defaultChunkRows {
		best := -1
		var bestRow uint32
		for i := range it.children {
			if !it.refill(i) {
				continue
			}
			row := it.chunks[i][it.cursors[i]]
			if best == -1 || row < bestRow {
				best = i
				bestRow = row
			}
		}
		if best == -1 {
			break
		}
		it.cursors[best]++
		it.out = append(it.out, bestRow)
	}

	if len(it.out) == 0 {
		return nil, false
	}

	chunk := it.clamp(it.out)

	return chunk, chunk != nil
}

// bitmapIterator scans a built bitmap ascendingly in fixed chunks.
type bitmapIterator struct {
	cutoffState

	scan   func(from uint32) (uint32, bool)
	cursor uint32
	done   bool

	out []uint32
}

func newBitmapIterator(scan func(from uint32) (uint32, bool), start uint32) *bitmapIterator {
	return &bitmapIterator{
		cutoffState: newCutoffState(),
		scan:        scan,
		cursor:      start,
		out:         make([]uint32, 0, defaultChunkRows),
	}
}

func (it *bitmapIterator) Err() error { return nil }

func (it *bitmapIterator) Hint(rowID uint32) bool {
	if it.done {
		return false
	}
	if rowID > it.cursor {
		it.cursor = rowID
	}

	return true
}

func (it *bitmapIterator) NextBlock() ([]uint32, bool) {
	if it.done {
		return nil, false
	}

	it.out = it.out[:0]
	for len(it.out) < defaultChunkRows {
		row, ok := it.scan(it.cursor)
		if !ok {
			it.done = true

			break
		}
		it.out = append(it.out, row)
		it.cursor = row + 1
	}

	if len(it.out) == 0 {
		return nil, false
	}

	chunk := it.clamp(it.out)
	if chunk == nil {
		it.done = true

		return nil, false
	}

	return chunk, true
}
