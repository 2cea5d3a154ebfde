package columnar

import (
	"math"

	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
	"github.com/colstore/secondary/internal/hash"
)

// Every attribute value is stored and compared as a uint64 key whose
// unsigned order matches the attribute's logical order. The mappings are:
//
//	u32, u64, timestamp: identity
//	bool:                0 / 1
//	i64:                 sign bit flipped, so i64 order == unsigned order
//	f32:                 IEEE-754 bits widened to u64 (monotone for
//	                     non-negative values, per the PGM build contract)
//	string:              xxHash64 digest (equality only, no order)
//
// Filters must probe with the same mapping; the helpers below are the only
// places the mapping is written down.

// I64Key maps an int64 to its order-preserving storage key.
func I64Key(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

// I64FromKey is the inverse of I64Key.
func I64FromKey(k uint64) int64 {
	return int64(k ^ (1 << 63))
}

// U32Key maps a uint32 to its storage key.
func U32Key(v uint32) uint64 { return uint64(v) }

// BoolKey maps a bool to its storage key.
func BoolKey(v bool) uint64 {
	if v {
		return 1
	}

	return 0
}

// F32Key maps a float32 to its storage key: the raw bit pattern widened to
// u64. NaN is rejected because the PGM build refuses it.
func F32Key(v float32) (uint64, error) {
	if math.IsNaN(float64(v)) {
		return 0, errs.ErrNaNValue
	}

	return uint64(math.Float32bits(v)), nil
}

// F32FromKey is the inverse of F32Key.
func F32FromKey(k uint64) float32 {
	return math.Float32frombits(uint32(k))
}

// StringKey maps a string to its storage key: the xxHash64 digest. Two
// different strings may share a key; the builder's collision tracker
// detects that per attribute and fails the build rather than store an
// ambiguous digest.
func StringKey(v string) uint64 {
	return hash.ID(v)
}

// TimestampKey maps a unix-epoch timestamp (any fixed unit the host
// chooses) to its storage key.
func TimestampKey(v int64) uint64 {
	return I64Key(v)
}

// attrSchema is the build-time description of one attribute.
type attrSchema struct {
	name     string
	attrType format.AttrType
}

func validAttrType(t format.AttrType) bool {
	switch t {
	case format.AttrU32, format.AttrI64, format.AttrBool, format.AttrF32,
		format.AttrString, format.AttrU32Set, format.AttrI64Set,
		format.AttrF32Vec, format.AttrTimestamp, format.AttrU64:
		return true
	default:
		return false
	}
}
