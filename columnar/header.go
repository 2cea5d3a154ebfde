package columnar

import (
	"fmt"

	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/endian"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
	"github.com/colstore/secondary/minmaxtree"
	"github.com/colstore/secondary/pgm"
)

var wireEngine = endian.GetLittleEndianEngine()

// maxNameLen bounds the attribute-name length accepted when parsing a
// header; anything larger is treated as corruption rather than an attempt
// to allocate it.
const maxNameLen = 4096

const flagStringHashes = 1 << 0

// attrHeader is the in-memory form of one attribute's on-disk header.
// Headers are chained: each ends with the absolute offset of the next, the
// last stores 0. All fields are immutable after Open.
type attrHeader struct {
	name            string
	attrType        format.AttrType
	hasStringHashes bool
	totalRows       uint64

	bodyOffset      uint64
	blockOffsets    []uint64 // absolute file offset of each block
	secondaryOffset uint64
	secondaryLen    uint64

	tree     *minmaxtree.Tree
	pgmIndex *pgm.Index

	nextHeaderOffset uint64
}

// numBlocks returns the block count; it always equals
// ceil(totalRows / RowsPerBlock).
func (h *attrHeader) numBlocks() int { return len(h.blockOffsets) }

// blockRows returns the row count of block i (the last block may be short).
func (h *attrHeader) blockRows(i int) int {
	if i < h.numBlocks()-1 {
		return RowsPerBlock
	}

	last := int(h.totalRows) - (h.numBlocks()-1)*RowsPerBlock

	return last
}

// marshalHeader serializes one attribute header:
//
//	[u32 type][u8 flags][varint total_rows][varint-string name]
//	[u64 body_offset][varint num_blocks]
//	[num_blocks x varint delta-encoded block offsets, first relative to body]
//	[u64 secondary_offset][varint secondary_len]
//	[u64 next_header_offset]
func marshalHeader(h *attrHeader) []byte {
	buf := wireEngine.AppendUint32(nil, uint32(h.attrType))

	var flags byte
	if h.hasStringHashes {
		flags |= flagStringHashes
	}
	buf = append(buf, flags)

	buf = codec.AppendVarint(buf, h.totalRows)
	buf = appendVarString(buf, h.name)
	buf = wireEngine.AppendUint64(buf, h.bodyOffset)
	buf = codec.AppendVarint(buf, uint64(len(h.blockOffsets)))

	prev := h.bodyOffset
	for _, off := range h.blockOffsets {
		buf = codec.AppendVarint(buf, off-prev)
		prev = off
	}

	buf = wireEngine.AppendUint64(buf, h.secondaryOffset)
	buf = codec.AppendVarint(buf, h.secondaryLen)
	buf = wireEngine.AppendUint64(buf, h.nextHeaderOffset)

	return buf
}

// parseHeader parses one header from data and returns it with the number
// of bytes consumed.
func parseHeader(data []byte) (*attrHeader, int, error) {
	h := &attrHeader{}
	pos := 0

	if len(data) < 5 {
		return nil, 0, errs.ErrTruncatedFile
	}
	h.attrType = format.AttrType(wireEngine.Uint32(data))
	pos += 4
	if !validAttrType(h.attrType) {
		return nil, 0, fmt.Errorf("%w: %d", errs.ErrUnknownAttributeType, uint32(h.attrType))
	}

	flags := data[pos]
	pos++
	h.hasStringHashes = flags&flagStringHashes != 0

	totalRows, sz, ok := codec.ReadVarint(data[pos:])
	if !ok {
		return nil, 0, errs.ErrTruncatedFile
	}
	pos += sz
	h.totalRows = totalRows

	name, sz, err := readVarString(data[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += sz
	h.name = name

	if pos+8 > len(data) {
		return nil, 0, errs.ErrTruncatedFile
	}
	h.bodyOffset = wireEngine.Uint64(data[pos:])
	pos += 8

	numBlocks, sz, ok := codec.ReadVarint(data[pos:])
	if !ok {
		return nil, 0, errs.ErrTruncatedFile
	}
	pos += sz

	h.blockOffsets = make([]uint64, numBlocks)
	prev := h.bodyOffset
	for i := range h.blockOffsets {
		delta, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, 0, errs.ErrTruncatedFile
		}
		pos += sz
		h.blockOffsets[i] = prev + delta
		if i > 0 && h.blockOffsets[i] <= h.blockOffsets[i-1] {
			return nil, 0, errs.ErrBlockOffsetsNotSorted
		}
		prev = h.blockOffsets[i]
	}

	if pos+8 > len(data) {
		return nil, 0, errs.ErrTruncatedFile
	}
	h.secondaryOffset = wireEngine.Uint64(data[pos:])
	pos += 8

	secondaryLen, sz, ok := codec.ReadVarint(data[pos:])
	if !ok {
		return nil, 0, errs.ErrTruncatedFile
	}
	pos += sz
	h.secondaryLen = secondaryLen

	if pos+8 > len(data) {
		return nil, 0, errs.ErrTruncatedFile
	}
	h.nextHeaderOffset = wireEngine.Uint64(data[pos:])
	pos += 8

	return h, pos, nil
}

func appendVarString(buf []byte, s string) []byte {
	buf = codec.AppendVarint(buf, uint64(len(s)))

	return append(buf, s...)
}

func readVarString(data []byte) (string, int, error) {
	strLen, sz, ok := codec.ReadVarint(data)
	if !ok {
		return "", 0, errs.ErrTruncatedFile
	}
	if strLen > maxNameLen {
		return "", 0, fmt.Errorf("%w: string length %d", errs.ErrInvalidFooter, strLen)
	}
	if sz+int(strLen) > len(data) {
		return "", 0, errs.ErrTruncatedFile
	}

	return string(data[sz : sz+int(strLen)]), sz + int(strLen), nil
}
