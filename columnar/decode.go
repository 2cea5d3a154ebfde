package columnar

import (
	"fmt"

	"github.com/colstore/secondary/block"
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// decodeBlockPayload dispatches on the packing tag with a single switch
// per block; there is no per-value virtual dispatch anywhere in the decode
// path.
func decodeBlockPayload(tag format.PackingTag, payload []byte, rows, subblockSize int, c codec.Codec) (*blockValues, error) {
	switch tag {
	case format.PackingConst:
		keys, err := block.DecodeConst(payload, rows)
		if err != nil {
			return nil, err
		}

		return &blockValues{keys: keys}, nil
	case format.PackingTable:
		keys, err := block.DecodeTable(payload, rows, subblockSize, c)
		if err != nil {
			return nil, err
		}

		return &blockValues{keys: keys}, nil
	case format.PackingDelta:
		keys, err := block.DecodeDelta(payload, rows, subblockSize, c)
		if err != nil {
			return nil, err
		}

		return &blockValues{keys: keys}, nil
	case format.PackingGeneric:
		keys, err := block.DecodeGeneric(payload, rows, subblockSize, c)
		if err != nil {
			return nil, err
		}

		return &blockValues{keys: keys}, nil
	case format.PackingHash:
		keys, present, err := block.DecodeHash(payload, rows, subblockSize)
		if err != nil {
			return nil, err
		}

		allPresent := true
		for _, p := range present {
			if !p {
				allPresent = false

				break
			}
		}
		if allPresent {
			present = nil
		}

		return &blockValues{keys: keys, present: present}, nil
	default:
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownPackingTag, uint32(tag))
	}
}
