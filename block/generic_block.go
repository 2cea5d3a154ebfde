package block

import (
	"github.com/colstore/secondary/codec"
)

// EncodeGeneric encodes a GENERIC block: per-subblock frame-of-reference
// ([varint min] then the packed (v-min) residues) with the subblock-size
// index appended. GENERIC is the fallback packing when a block is neither
// constant, low-cardinality, nor monotone.
func EncodeGeneric(values []uint64, subblockSize int, c codec.Codec) []byte {
	n := NumSubblocks(len(values), subblockSize)
	payloads := make([][]byte, n)

	for i := 0; i < n; i++ {
		start, end := subblockBounds(i, len(values), subblockSize)
		payloads[i] = c.EncodeU64(values[start:end])
	}

	return AppendSubIndexed(nil, payloads, c)
}

// DecodeGeneric parses a GENERIC block payload for n rows.
func DecodeGeneric(data []byte, n, subblockSize int, c codec.Codec) ([]uint64, error) {
	numSub := NumSubblocks(n, subblockSize)
	payloads, err := SplitSubIndexed(data, numSub, c)
	if err != nil {
		return nil, err
	}

	out := make([]uint64, 0, n)
	for i, payload := range payloads {
		start, end := subblockBounds(i, n, subblockSize)

		values, err := c.DecodeU64(payload, end-start)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}

	return out, nil
}

// DecodeGenericSubblock decodes a single subblock of a GENERIC block.
func DecodeGenericSubblock(data []byte, idx, numSub, subLen int, c codec.Codec) ([]uint64, error) {
	payloads, err := SplitSubIndexed(data, numSub, c)
	if err != nil {
		return nil, err
	}

	return c.DecodeU64(payloads[idx], subLen)
}
