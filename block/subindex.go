package block

import (
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/endian"
	"github.com/colstore/secondary/errs"
)

// DELTA and GENERIC blocks store one independently decodable payload per
// subblock. Following the subblock payloads, the packer writes a
// delta-encoded vector of cumulative subblock byte sizes so any subblock
// can be located with a binary search over one decoded vector. The
// index's own byte length is a fixed u32 at the very end of the block,
// reachable because the block's total length is known from the header's
// block-offset deltas.

var wireEngine = endian.GetLittleEndianEngine()

// AppendSubIndexed lays out payloads then the cumulative-size index.
func AppendSubIndexed(buf []byte, payloads [][]byte, c codec.Codec) []byte {
	cumulative := make([]uint64, len(payloads))
	var running uint64
	for i, p := range payloads {
		running += uint64(len(p))
		cumulative[i] = running
		buf = append(buf, p...)
	}

	idxStart := len(buf)
	buf = AppendFramedDeltaU64(buf, cumulative, c)

	return wireEngine.AppendUint32(buf, uint32(len(buf)-idxStart))
}

// SplitSubIndexed recovers the per-subblock payload slices written by
// AppendSubIndexed. numSubblocks must match the writer's payload count.
func SplitSubIndexed(data []byte, numSubblocks int, c codec.Codec) ([][]byte, error) {
	if len(data) < 4 {
		return nil, errs.ErrDecodeResidue
	}
	idxLen := int(wireEngine.Uint32(data[len(data)-4:]))
	idxStart := len(data) - 4 - idxLen
	if idxLen < 0 || idxStart < 0 {
		return nil, errs.ErrDecodeResidue
	}

	cumulative, consumed, err := ReadFramedDeltaU64(data[idxStart:len(data)-4], numSubblocks, c)
	if err != nil {
		return nil, err
	}
	if consumed != idxLen {
		return nil, errs.ErrDecodeResidue
	}

	payloads := make([][]byte, numSubblocks)
	var prev uint64
	for i, cum := range cumulative {
		if cum < prev || cum > uint64(idxStart) {
			return nil, errs.ErrDecodeResidue
		}
		payloads[i] = data[prev:cum]
		prev = cum
	}
	if prev != uint64(idxStart) {
		return nil, errs.ErrDecodeResidue
	}

	return payloads, nil
}
