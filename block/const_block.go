package block

import (
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
)

// EncodeConst encodes a CONST block: one varint holding the value every
// row of the block shares. Callers must only invoke this when
// ChoosePacking returned PackingConst.
func EncodeConst(value uint64) []byte {
	return codec.AppendVarint(nil, value)
}

// DecodeConst parses a CONST block payload and replicates it n times.
func DecodeConst(data []byte, n int) ([]uint64, error) {
	v, _, ok := codec.ReadVarint(data)
	if !ok {
		return nil, errs.ErrDecodeResidue
	}

	out := make([]uint64, n)
	for i := range out {
		out[i] = v
	}

	return out, nil
}
