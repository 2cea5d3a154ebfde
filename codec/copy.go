package codec

import (
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// copyCodec is the "copy" passthrough: no frame-of-reference,
// no bitpacking, just varint (zigzag for deltas, which may be negative).
// For callers who want a codec whose cost is trivial to reason about.
type copyCodec struct{}

var _ Codec = copyCodec{}

func (copyCodec) Kind() format.CodecKind { return format.CodecCopy }

func (copyCodec) EncodeU32(values []uint32) []byte {
	buf := make([]byte, 0, len(values)*2)
	for _, v := range values {
		buf = AppendVarint(buf, uint64(v))
	}

	return buf
}

func (copyCodec) DecodeU32(data []byte, n int) ([]uint32, error) {
	out := make([]uint32, n)
	pos := 0
	for i := 0; i < n; i++ {
		v, sz, ok := ReadVarint(data[pos:])
		if !ok {
			return nil, errs.ErrDecodeResidue
		}
		out[i] = uint32(v)
		pos += sz
	}
	if pos != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}

func (copyCodec) EncodeDeltaU32(values []uint32) []byte {
	buf := make([]byte, 0, len(values)*2)
	var prev int64
	for i, v := range values {
		cur := int64(v)
		if i == 0 {
			buf = AppendVarint(buf, uint64(cur))
		} else {
			buf = AppendVarint(buf, zigzagEncode(cur-prev))
		}
		prev = cur
	}

	return buf
}

func (copyCodec) DecodeDeltaU32(data []byte, n int) ([]uint32, error) {
	out := make([]uint32, n)
	pos := 0
	var prev int64
	for i := 0; i < n; i++ {
		v, sz, ok := ReadVarint(data[pos:])
		if !ok {
			return nil, errs.ErrDecodeResidue
		}
		pos += sz
		if i == 0 {
			prev = int64(v)
		} else {
			prev += zigzagDecode(v)
		}
		out[i] = uint32(prev)
	}
	if pos != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}

func (copyCodec) EncodeU64(values []uint64) []byte {
	buf := make([]byte, 0, len(values)*2)
	for _, v := range values {
		buf = AppendVarint(buf, v)
	}

	return buf
}

func (copyCodec) DecodeU64(data []byte, n int) ([]uint64, error) {
	out := make([]uint64, n)
	pos := 0
	for i := 0; i < n; i++ {
		v, sz, ok := ReadVarint(data[pos:])
		if !ok {
			return nil, errs.ErrDecodeResidue
		}
		out[i] = v
		pos += sz
	}
	if pos != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}

func (copyCodec) EncodeDeltaU64(values []uint64) []byte {
	buf := make([]byte, 0, len(values)*2)
	var prev int64
	for i, v := range values {
		cur := int64(v) //nolint:gosec
		if i == 0 {
			buf = AppendVarint(buf, uint64(cur))
		} else {
			buf = AppendVarint(buf, zigzagEncode(cur-prev))
		}
		prev = cur
	}

	return buf
}

func (copyCodec) DecodeDeltaU64(data []byte, n int) ([]uint64, error) {
	out := make([]uint64, n)
	pos := 0
	var prev int64
	for i := 0; i < n; i++ {
		v, sz, ok := ReadVarint(data[pos:])
		if !ok {
			return nil, errs.ErrDecodeResidue
		}
		pos += sz
		if i == 0 {
			prev = int64(v)
		} else {
			prev += zigzagDecode(v)
		}
		out[i] = uint64(prev) //nolint:gosec
	}
	if pos != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return out, nil
}
