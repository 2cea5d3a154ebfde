// Package codec implements the integer codec layer: a small
// Encode/EncodeDelta/Decode/DecodeDelta interface over 32- and 64-bit
// integer streams, with frame-of-reference, bitpacking, StreamVByte, and
// plain varint implementations behind it.
//
// Delta is handled with wraparound unsigned arithmetic: values[0] is
// stored raw, then successive differences mod 2^32/2^64. That round-trips
// for both ascending and descending sequences, so the codec never needs
// to know a block's monotonicity direction; the direction flag lives in
// the DELTA block encoding, one layer up.
package codec

import (
	"fmt"

	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// Codec is the C2 contract: encode/decode 32- and 64-bit integer spans,
// plain or delta-transformed.
type Codec interface {
	Kind() format.CodecKind

	EncodeU32(values []uint32) []byte
	DecodeU32(data []byte, n int) ([]uint32, error)
	EncodeDeltaU32(values []uint32) []byte
	DecodeDeltaU32(data []byte, n int) ([]uint32, error)

	EncodeU64(values []uint64) []byte
	DecodeU64(data []byte, n int) ([]uint64, error)
	EncodeDeltaU64(values []uint64) []byte
	DecodeDeltaU64(data []byte, n int) ([]uint64, error)
}

// CreateCodec returns the Codec implementation for kind, or
// errs.ErrUnknownCodec if kind is a recognized *name* (format.ParseCodecKind
// succeeded) but has no implementation (e.g. "simple8b").
func CreateCodec(kind format.CodecKind) (Codec, error) {
	switch kind {
	case format.CodecPFOR:
		return pforCodec{}, nil
	case format.CodecStreamVByte:
		return streamVByteCodec{}, nil
	case format.CodecCopy:
		return copyCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %v", errs.ErrUnknownCodec, kind)
	}
}

// encodeFORu32 frame-of-reference + bitpacks values: [varint min][u8 bitWidth][bitpacked (v-min)].
// An empty slice encodes to nil.
func encodeFORu32(values []uint32) []byte {
	if len(values) == 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	bitWidth := BitWidthU32(max - min)

	buf := AppendVarint(nil, uint64(min))
	buf = append(buf, byte(bitWidth))

	if bitWidth == 0 {
		return buf
	}

	shifted := make([]uint32, len(values))
	for i, v := range values {
		shifted[i] = v - min
	}

	return append(buf, BitPack32(shifted, bitWidth)...)
}

func decodeFORu32(data []byte, n int) ([]uint32, int, error) {
	if n == 0 {
		return nil, 0, nil
	}

	minV, sz, ok := ReadVarint(data)
	if !ok {
		return nil, 0, errs.ErrDecodeResidue
	}
	pos := sz

	if pos >= len(data) {
		return nil, 0, errs.ErrDecodeResidue
	}
	bitWidth := int(data[pos])
	pos++

	out := make([]uint32, n)
	if bitWidth == 0 {
		for i := range out {
			out[i] = uint32(minV)
		}

		return out, pos, nil
	}

	needed := (n*bitWidth + 7) / 8
	if pos+needed > len(data) {
		return nil, 0, errs.ErrDecodeResidue
	}

	unpacked := BitUnpack32(data[pos:pos+needed], n, bitWidth)
	for i, v := range unpacked {
		out[i] = v + uint32(minV)
	}

	return out, pos + needed, nil
}

func encodeFORu64(values []uint64) []byte {
	if len(values) == 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	bitWidth := BitWidthU64(max - min)
	buf := AppendVarint(nil, min)
	buf = append(buf, byte(bitWidth))

	for _, v := range values {
		buf = AppendVarint(buf, v-min)
	}

	return buf
}

func decodeFORu64(data []byte, n int) ([]uint64, int, error) {
	if n == 0 {
		return nil, 0, nil
	}

	minV, sz, ok := ReadVarint(data)
	if !ok {
		return nil, 0, errs.ErrDecodeResidue
	}
	pos := sz

	if pos >= len(data) {
		return nil, 0, errs.ErrDecodeResidue
	}
	pos++ // bitWidth byte is carried for wire symmetry with the u32 path but unused by this varint-per-value tail

	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		v, sz, ok := ReadVarint(data[pos:])
		if !ok {
			return nil, 0, errs.ErrDecodeResidue
		}
		out[i] = v + minV
		pos += sz
	}

	return out, pos, nil
}
