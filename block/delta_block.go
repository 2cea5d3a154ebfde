package block

import (
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
)

// Subblock direction tags for DELTA blocks; every subblock payload leads
// with one of these.
const (
	deltaAsc  = 0
	deltaDesc = 1
)

// EncodeDelta encodes a DELTA block: values must be monotone ascending or
// descending across the whole block (ChoosePacking guarantees this).
// Each subblock is encoded independently so a query touching one subblock
// never decodes its neighbors: [u8 direction][delta-encoded values], with
// the subblock-size index appended by AppendSubIndexed.
//
// A descending subblock is stored as its ascending reversal; the decoder
// undoes the reversal, which is a per-delta sign flip expressed at the
// sequence level.
func EncodeDelta(values []uint64, subblockSize int, c codec.Codec) []byte {
	n := NumSubblocks(len(values), subblockSize)
	payloads := make([][]byte, n)

	desc := len(values) > 1 && values[0] > values[len(values)-1]

	for i := 0; i < n; i++ {
		start, end := subblockBounds(i, len(values), subblockSize)
		sub := values[start:end]

		if !desc {
			payload := []byte{deltaAsc}
			payloads[i] = append(payload, c.EncodeDeltaU64(sub)...)

			continue
		}

		reversed := make([]uint64, len(sub))
		for j, v := range sub {
			reversed[len(sub)-1-j] = v
		}
		payload := []byte{deltaDesc}
		payloads[i] = append(payload, c.EncodeDeltaU64(reversed)...)
	}

	return AppendSubIndexed(nil, payloads, c)
}

// DecodeDelta parses a DELTA block payload for n rows.
func DecodeDelta(data []byte, n, subblockSize int, c codec.Codec) ([]uint64, error) {
	numSub := NumSubblocks(n, subblockSize)
	payloads, err := SplitSubIndexed(data, numSub, c)
	if err != nil {
		return nil, err
	}

	out := make([]uint64, 0, n)
	for i, payload := range payloads {
		start, end := subblockBounds(i, n, subblockSize)
		subLen := end - start

		if len(payload) < 1 {
			return nil, errs.ErrDecodeResidue
		}
		direction := payload[0]

		values, err := c.DecodeDeltaU64(payload[1:], subLen)
		if err != nil {
			return nil, err
		}

		switch direction {
		case deltaAsc:
			out = append(out, values...)
		case deltaDesc:
			for j := len(values) - 1; j >= 0; j-- {
				out = append(out, values[j])
			}
		default:
			return nil, errs.ErrDecodeResidue
		}
	}

	return out, nil
}

// DecodeDeltaSubblock decodes a single subblock of a DELTA block without
// touching the others; idx is the subblock index and subLen its row count.
func DecodeDeltaSubblock(data []byte, idx, numSub, subLen int, c codec.Codec) ([]uint64, error) {
	payloads, err := SplitSubIndexed(data, numSub, c)
	if err != nil {
		return nil, err
	}
	payload := payloads[idx]
	if len(payload) < 1 {
		return nil, errs.ErrDecodeResidue
	}

	values, err := c.DecodeDeltaU64(payload[1:], subLen)
	if err != nil {
		return nil, err
	}

	if payload[0] == deltaDesc {
		for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
			values[i], values[j] = values[j], values[i]
		}
	}

	return values, nil
}
