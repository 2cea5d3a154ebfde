// Package block implements the per-block value encodings (CONST, TABLE,
// DELTA, GENERIC, HASH), the per-distinct-value row-list encodings (ROW,
// ROW_BLOCK, ROW_BLOCKS_LIST), and the packing decision logic. It sits
// between codec (raw integer primitives) and columnar (which drives
// buffering, flush, and query dispatch).
package block

import (
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// RowsPerBlock is the row-list chunking threshold: a value with at most
// this many rows packs as one ROW_BLOCK, anything larger is chunked into
// a ROW_BLOCKS_LIST.
const RowsPerBlock = 1024

// ChooseRowListKind picks the row-list encoding for a distinct value's
// row IDs: single row -> ROW (the caller stores the row ID inline and
// never calls the encoders in this file), <= RowsPerBlock -> ROW_BLOCK,
// otherwise ROW_BLOCKS_LIST.
func ChooseRowListKind(rowCount int) format.RowListKind {
	switch {
	case rowCount <= 1:
		return format.RowListRow
	case rowCount <= RowsPerBlock:
		return format.RowListBlock
	default:
		return format.RowListBlocksList
	}
}

// EncodeRowBlock encodes <= RowsPerBlock strictly ascending row IDs as
// one delta-compressed stream.
func EncodeRowBlock(rowIDs []uint64, c codec.Codec) []byte {
	buf := codec.AppendVarint(nil, uint64(len(rowIDs)))

	return append(buf, c.EncodeDeltaU64(rowIDs)...)
}

// DecodeRowBlock parses a blob produced by EncodeRowBlock.
func DecodeRowBlock(data []byte, c codec.Codec) ([]uint64, error) {
	n, sz, ok := codec.ReadVarint(data)
	if !ok {
		return nil, errs.ErrDecodeResidue
	}

	return c.DecodeDeltaU64(data[sz:], int(n))
}

// RowBlocksChunk holds the decoded bounds of one 1024-row chunk inside a
// ROW_BLOCKS_LIST payload.
type RowBlocksChunk struct {
	Min, Max uint64
	Offset   int
	Len      int
}

// EncodeRowBlocksList encodes > RowsPerBlock row IDs:
// [varint #chunks][delta-compressed chunk mins][chunk maxs]
// [chunk offsets][chunk payloads, each delta-compressed]. Per-chunk
// ranges must be disjoint and ascending, which holds automatically
// because rowIDs is strictly ascending and chunked contiguously.
func EncodeRowBlocksList(rowIDs []uint64, c codec.Codec) []byte {
	numChunks := (len(rowIDs) + RowsPerBlock - 1) / RowsPerBlock

	mins := make([]uint64, 0, numChunks)
	maxs := make([]uint64, 0, numChunks)
	payloads := make([][]byte, 0, numChunks)

	for i := 0; i < numChunks; i++ {
		start := i * RowsPerBlock
		end := start + RowsPerBlock
		if end > len(rowIDs) {
			end = len(rowIDs)
		}
		chunk := rowIDs[start:end]
		mins = append(mins, chunk[0])
		maxs = append(maxs, chunk[len(chunk)-1])

		payload := codec.AppendVarint(nil, uint64(len(chunk)))
		payload = append(payload, c.EncodeDeltaU64(chunk)...)
		payloads = append(payloads, payload)
	}

	buf := codec.AppendVarint(nil, uint64(numChunks))
	buf = AppendFramedDeltaU64(buf, mins, c)
	buf = AppendFramedDeltaU64(buf, maxs, c)

	offsets := make([]uint64, numChunks)
	var running uint64
	for i, p := range payloads {
		offsets[i] = running
		running += uint64(len(p))
	}
	buf = AppendFramedDeltaU64(buf, offsets, c)

	for _, p := range payloads {
		buf = append(buf, p...)
	}

	return buf
}

// AppendFramedDeltaU64 appends a [varint byte-length][delta-PFOR payload]
// frame so several such streams can be concatenated and later sliced out
// individually; codec Decode* implementations require consuming their
// input slice exactly, so an explicit byte-length prefix (rather than
// relying on the decoder to report how much it consumed) is what makes
// that legal here.
func AppendFramedDeltaU64(buf []byte, values []uint64, c codec.Codec) []byte {
	encoded := c.EncodeDeltaU64(values)
	buf = codec.AppendVarint(buf, uint64(len(encoded)))

	return append(buf, encoded...)
}

// ReadFramedDeltaU64 reads a frame written by AppendFramedDeltaU64.
func ReadFramedDeltaU64(data []byte, n int, c codec.Codec) ([]uint64, int, error) {
	byteLen, sz, ok := codec.ReadVarint(data)
	if !ok {
		return nil, 0, errs.ErrDecodeResidue
	}
	pos := sz
	if pos+int(byteLen) > len(data) {
		return nil, 0, errs.ErrDecodeResidue
	}

	values, err := c.DecodeDeltaU64(data[pos:pos+int(byteLen)], n)
	if err != nil {
		return nil, 0, err
	}

	return values, pos + int(byteLen), nil
}

// RowBlocksList is the parsed, not-yet-chunk-decoded view of a
// ROW_BLOCKS_LIST payload: enough to test chunk min/max against a filter
// before paying for chunk decode.
type RowBlocksList struct {
	chunks      []RowBlocksChunk
	payloadBase int
	data        []byte
	codec       codec.Codec
}

// ParseRowBlocksList reads the chunk index (mins, maxs, offsets) without
// decoding any chunk payload.
func ParseRowBlocksList(data []byte, c codec.Codec) (*RowBlocksList, error) {
	numChunks, sz, ok := codec.ReadVarint(data)
	if !ok {
		return nil, errs.ErrDecodeResidue
	}
	pos := sz

	mins, consumed, err := ReadFramedDeltaU64(data[pos:], int(numChunks), c)
	if err != nil {
		return nil, err
	}
	pos += consumed

	maxs, consumed, err := ReadFramedDeltaU64(data[pos:], int(numChunks), c)
	if err != nil {
		return nil, err
	}
	pos += consumed

	offsets, consumed, err := ReadFramedDeltaU64(data[pos:], int(numChunks), c)
	if err != nil {
		return nil, err
	}
	pos += consumed

	chunks := make([]RowBlocksChunk, numChunks)
	for i := range chunks {
		chunks[i] = RowBlocksChunk{Min: mins[i], Max: maxs[i], Offset: int(offsets[i])}
		if i > 0 {
			chunks[i-1].Len = chunks[i].Offset - chunks[i-1].Offset
		}
	}
	if numChunks > 0 {
		chunks[numChunks-1].Len = len(data) - pos - chunks[numChunks-1].Offset
	}

	return &RowBlocksList{chunks: chunks, payloadBase: pos, data: data, codec: c}, nil
}

// Chunks exposes chunk bounds for filter pre-testing.
func (h *RowBlocksList) Chunks() []RowBlocksChunk { return h.chunks }

// DecodeChunk lazily decodes one chunk's row IDs.
func (h *RowBlocksList) DecodeChunk(i int) ([]uint64, error) {
	chunk := h.chunks[i]
	start := h.payloadBase + chunk.Offset
	end := start + chunk.Len
	if chunk.Len < 0 || end > len(h.data) {
		return nil, errs.ErrDecodeResidue
	}

	n, sz, ok := codec.ReadVarint(h.data[start:end])
	if !ok {
		return nil, errs.ErrDecodeResidue
	}

	return h.codec.DecodeDeltaU64(h.data[start+sz:end], int(n))
}
