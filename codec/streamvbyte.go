package codec

import (
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// streamVByteCodec implements the StreamVByte layout: each group of four
// values shares one control byte holding four 2-bit length codes (1-4
// bytes per value), with the actual value bytes concatenated in a second
// stream. StreamVByte is defined over 32-bit streams; the 64-bit methods
// fall back to the same frame-of-reference path pforCodec uses, since the
// algorithm has no natural 64-bit form.
type streamVByteCodec struct{}

var _ Codec = streamVByteCodec{}

func (streamVByteCodec) Kind() format.CodecKind { return format.CodecStreamVByte }

func (streamVByteCodec) EncodeU32(values []uint32) []byte {
	n := len(values)
	controlLen := (n + 3) / 4
	control := make([]byte, controlLen)
	data := make([]byte, 0, n*2)

	for i, v := range values {
		length := byteLen(v)
		control[i/4] |= byte(length-1) << uint((i%4)*2)
		for b := 0; b < length; b++ {
			data = append(data, byte(v>>(8*uint(b))))
		}
	}

	buf := AppendVarint(nil, uint64(n))
	buf = append(buf, control...)

	return append(buf, data...)
}

func (streamVByteCodec) DecodeU32(data []byte, n int) ([]uint32, error) {
	encodedN, sz, ok := ReadVarint(data)
	if !ok || int(encodedN) != n {
		return nil, errs.ErrDecodeResidue
	}
	pos := sz

	controlLen := (n + 3) / 4
	if pos+controlLen > len(data) {
		return nil, errs.ErrDecodeResidue
	}
	control := data[pos : pos+controlLen]
	pos += controlLen

	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		code := (control[i/4] >> uint((i%4)*2)) & 0x3
		length := int(code) + 1
		if pos+length > len(data) {
			return nil, errs.ErrDecodeResidue
		}

		var v uint32
		for b := 0; b < length; b++ {
			v |= uint32(data[pos+b]) << (8 * uint(b))
		}
		out[i] = v
		pos += length
	}

	if pos != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}

func (c streamVByteCodec) EncodeDeltaU32(values []uint32) []byte {
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

	return append(buf, c.EncodeU32(diffs)...)
}

func (c streamVByteCodec) DecodeDeltaU32(data []byte, n int) ([]uint32, error) {
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

	diffs, err := c.DecodeU32(data[sz:], n-1)
	if err != nil {
		return nil, err
	}

	cur := out[0]
	for i, d := range diffs {
		cur += d
		out[i+1] = cur
	}

	return out, nil
}

func (streamVByteCodec) EncodeU64(values []uint64) []byte { return encodeFORu64(values) }

func (streamVByteCodec) DecodeU64(data []byte, n int) ([]uint64, error) {
	out, consumed, err := decodeFORu64(data, n)
	if err != nil {
		return nil, err
	}
	if consumed != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}

func (streamVByteCodec) EncodeDeltaU64(values []uint64) []byte {
	return pforCodec{}.EncodeDeltaU64(values)
}

func (streamVByteCodec) DecodeDeltaU64(data []byte, n int) ([]uint64, error) {
	return pforCodec{}.DecodeDeltaU64(data, n)
}

func byteLen(v uint32) int {
	switch {
	case v < 1<<8:
		return 1
	case v < 1<<16:
		return 2
	case v < 1<<24:
		return 3
	default:
		return 4
	}
}
