package block

import (
	"sort"

	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
)

// EncodeTable encodes a TABLE block: [u8 table_len][delta-compressed
// sorted table][bitpacked ordinals, ceil(log2 table_len) bits each].
// Each subblockSize-row group is bitpacked independently with
// zero-padding in the trailing group, so unpacking any one group is a
// fixed-cost operation.
func EncodeTable(values []uint64, subblockSize int, c codec.Codec) ([]byte, error) {
	table, ordinals, err := buildTable(values)
	if err != nil {
		return nil, err
	}

	bitWidth := codec.BitWidthU32(uint32(len(table) - 1))

	buf := []byte{byte(len(table))}
	buf = AppendFramedDeltaU64(buf, table, c)

	n := NumSubblocks(len(values), subblockSize)
	for i := 0; i < n; i++ {
		start, end := subblockBounds(i, len(values), subblockSize)
		group := make([]uint32, subblockSize)
		for j := start; j < end; j++ {
			group[j-start] = ordinals[j]
		}
		if bitWidth > 0 {
			buf = append(buf, codec.BitPack32(group, bitWidth)...)
		}
	}

	return buf, nil
}

// buildTable sorts the distinct values and maps each input value to its
// sorted ordinal.
func buildTable(values []uint64) ([]uint64, []uint32, error) {
	seen := make(map[uint64]struct{})
	for _, v := range values {
		seen[v] = struct{}{}
	}
	if len(seen) > 255 {
		return nil, nil, errs.ErrTableTooLarge
	}

	table := make([]uint64, 0, len(seen))
	for v := range seen {
		table = append(table, v)
	}
	sort.Slice(table, func(i, j int) bool { return table[i] < table[j] })

	rank := make(map[uint64]uint32, len(table))
	for i, v := range table {
		rank[v] = uint32(i)
	}

	ordinals := make([]uint32, len(values))
	for i, v := range values {
		ordinals[i] = rank[v]
	}

	return table, ordinals, nil
}

// DecodeTable parses a TABLE block payload for n rows.
func DecodeTable(data []byte, n, subblockSize int, c codec.Codec) ([]uint64, error) {
	if len(data) < 1 {
		return nil, errs.ErrDecodeResidue
	}
	tableLen := int(data[0])
	pos := 1

	table, consumed, err := decodeDeltaTable(data[pos:], tableLen, c)
	if err != nil {
		return nil, err
	}
	pos += consumed

	bitWidth := codec.BitWidthU32(uint32(tableLen - 1))

	out := make([]uint64, n)
	numSub := NumSubblocks(n, subblockSize)
	for i := 0; i < numSub; i++ {
		start, end := subblockBounds(i, n, subblockSize)
		if bitWidth == 0 {
			for j := start; j < end; j++ {
				out[j] = table[0]
			}

			continue
		}

		groupBytes := (subblockSize*bitWidth + 7) / 8
		if pos+groupBytes > len(data) {
			return nil, errs.ErrDecodeResidue
		}
		ordinals := codec.BitUnpack32(data[pos:pos+groupBytes], subblockSize, bitWidth)
		pos += groupBytes

		for j := start; j < end; j++ {
			ord := ordinals[j-start]
			if int(ord) >= len(table) {
				return nil, errs.ErrDecodeResidue
			}
			out[j] = table[ord]
		}
	}

	return out, nil
}

// decodeDeltaTable reads the framed, delta-PFOR-encoded sorted table that
// precedes the bitpacked ordinal groups.
func decodeDeltaTable(data []byte, n int, c codec.Codec) ([]uint64, int, error) {
	return ReadFramedDeltaU64(data, n, c)
}
