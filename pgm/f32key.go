package pgm

import (
	"math"

	"github.com/colstore/secondary/errs"
)

// F32Key bit-casts a float32 to the u64 key space the Index operates in
// (widened from its natural u32 so Index can share one key type across
// attribute kinds). Bit-pattern ordering only holds for non-negative
// floats; callers that need true IEEE-754 total ordering across sign must
// pre-transform the bit pattern themselves, which no attribute this
// system stores requires.
func F32Key(v float32) (uint64, error) {
	if math.IsNaN(float64(v)) {
		return 0, errs.ErrNaNValue
	}

	return uint64(math.Float32bits(v)), nil
}

// BuildF32 bit-casts a float32 distinct-value set before delegating to
// Build. NaN values are rejected: they have no usable position in the key
// order.
func BuildF32(values []float32) (*Index, error) {
	keys := make([]uint64, 0, len(values))
	for _, v := range values {
		k, err := F32Key(v)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	return Build(keys), nil
}
