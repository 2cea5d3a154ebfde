package codec

import (
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// pforCodec is the frame-of-reference + bitpack codec named "pfor" (and its
// "fastpfor*"/"simdpfor*" aliases, see format.ParseCodecKind). It is the
// default, and the workhorse used by DELTA and GENERIC block packing.
type pforCodec struct{}

var _ Codec = pforCodec{}

func (pforCodec) Kind() format.CodecKind { return format.CodecPFOR }

func (pforCodec) EncodeU32(values []uint32) []byte { return encodeFORu32(values) }

func (pforCodec) DecodeU32(data []byte, n int) ([]uint32, error) {
	out, consumed, err := decodeFORu32(data, n)
	if err != nil {
		return nil, err
	}
	if consumed != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}

// EncodeDeltaU32 stores values[0] as a raw varint, then frame-of-reference
// + bitpacks the wraparound successive differences. Wraparound (mod 2^32)
// subtraction/addition round-trips for both ascending and descending
// sequences, so this codec does not need to know the block's direction.
func (pforCodec) EncodeDeltaU32(values []uint32) []byte {
	if len(values) == 0 {
		return nil
	}

	buf := AppendVarint(nil, uint64(values[0]))
	if len(values) == 1 {
		return buf
	}

	diffs := make([]uint32, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}

	return append(buf, encodeFORu32(diffs)...)
}

func (pforCodec) DecodeDeltaU32(data []byte, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}

	first, sz, ok := ReadVarint(data)
	if !ok {
		return nil, errs.ErrDecodeResidue
	}

	out := make([]uint32, n)
	out[0] = uint32(first)
	if n == 1 {
		if sz != len(data) {
			return nil, errs.ErrDecodeResidue
		}

		return out, nil
	}

	diffs, consumed, err := decodeFORu32(data[sz:], n-1)
	if err != nil {
		return nil, err
	}
	if sz+consumed != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	cur := out[0]
	for i, d := range diffs {
		cur += d
		out[i+1] = cur
	}

	return out, nil
}

func (pforCodec) EncodeU64(values []uint64) []byte { return encodeFORu64(values) }

func (pforCodec) DecodeU64(data []byte, n int) ([]uint64, error) {
	out, consumed, err := decodeFORu64(data, n)
	if err != nil {
		return nil, err
	}
	if consumed != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}

func (pforCodec) EncodeDeltaU64(values []uint64) []byte {
	if len(values) == 0 {
		return nil
	}

	buf := AppendVarint(nil, values[0])
	if len(values) == 1 {
		return buf
	}

	diffs := make([]uint64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}

	return append(buf, encodeFORu64(diffs)...)
}

func (pforCodec) DecodeDeltaU64(data []byte, n int) ([]uint64, error) {
	if n == 0 {
		return nil, nil
	}

	first, sz, ok := ReadVarint(data)
	if !ok {
		return nil, errs.ErrDecodeResidue
	}

	out := make([]uint64, n)
	out[0] = first
	if n == 1 {
		if sz != len(data) {
			return nil, errs.ErrDecodeResidue
		}

		return out, nil
	}

	diffs, consumed, err := decodeFORu64(data[sz:], n-1)
	if err != nil {
		return nil, err
	}
	if sz+consumed != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	cur := out[0]
	for i, d := range diffs {
		cur += d
		out[i+1] = cur
	}

	return out, nil
}
