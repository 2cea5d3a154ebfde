package block

import (
	"github.com/colstore/secondary/errs"
)

// EncodeHash encodes a HASH block for string attributes: per subblock
// [u16 non-null-count][optional null-bitmap][u64 hashes x non-null-count].
// hashes holds one xxHash64 digest per row; present[i] is false for null
// rows (their hash slot is ignored). When every row of a subblock is
// non-null the null bitmap is omitted, which is the common case and what
// makes the omission rule worth its branch.
//
// The subblock payload size is computable from the non-null count alone,
// so HASH blocks carry no subblock-size index.
func EncodeHash(hashes []uint64, present []bool, subblockSize int) []byte {
	var buf []byte

	n := NumSubblocks(len(hashes), subblockSize)
	for i := 0; i < n; i++ {
		start, end := subblockBounds(i, len(hashes), subblockSize)
		subLen := end - start

		nonNull := 0
		for j := start; j < end; j++ {
			if present == nil || present[j] {
				nonNull++
			}
		}

		buf = wireEngine.AppendUint16(buf, uint16(nonNull))

		if nonNull < subLen {
			bitmap := make([]byte, (subLen+7)/8)
			for j := start; j < end; j++ {
				if present[j] {
					bit := j - start
					bitmap[bit/8] |= 1 << uint(bit%8)
				}
			}
			buf = append(buf, bitmap...)
		}

		for j := start; j < end; j++ {
			if present == nil || present[j] {
				buf = wireEngine.AppendUint64(buf, hashes[j])
			}
		}
	}

	return buf
}

// DecodeHash parses a HASH block payload for n rows. Null rows decode with
// present=false and a zero hash slot.
func DecodeHash(data []byte, n, subblockSize int) ([]uint64, []bool, error) {
	hashes := make([]uint64, n)
	present := make([]bool, n)

	pos := 0
	numSub := NumSubblocks(n, subblockSize)
	for i := 0; i < numSub; i++ {
		start, end := subblockBounds(i, n, subblockSize)
		subLen := end - start

		if pos+2 > len(data) {
			return nil, nil, errs.ErrDecodeResidue
		}
		nonNull := int(wireEngine.Uint16(data[pos:]))
		pos += 2

		if nonNull > subLen {
			return nil, nil, errs.ErrDecodeResidue
		}

		var bitmap []byte
		if nonNull < subLen {
			bmLen := (subLen + 7) / 8
			if pos+bmLen > len(data) {
				return nil, nil, errs.ErrDecodeResidue
			}
			bitmap = data[pos : pos+bmLen]
			pos += bmLen
		}

		if pos+8*nonNull > len(data) {
			return nil, nil, errs.ErrDecodeResidue
		}

		consumed := 0
		for j := start; j < end; j++ {
			bit := j - start
			if bitmap != nil && bitmap[bit/8]&(1<<uint(bit%8)) == 0 {
				continue
			}
			if consumed == nonNull {
				return nil, nil, errs.ErrDecodeResidue
			}
			hashes[j] = wireEngine.Uint64(data[pos:])
			present[j] = true
			pos += 8
			consumed++
		}
		if consumed != nonNull {
			return nil, nil, errs.ErrDecodeResidue
		}
	}

	if pos != len(data) {
		return nil, nil, errs.ErrDecodeResidue
	}

	return hashes, present, nil
}
