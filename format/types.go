// Package format holds the small, shared enums that appear on the wire:
// attribute types, block packing tags, row-list kinds, codec names, and
// block compression kinds. Keeping them in one leaf package (instead of
// scattered const blocks per consumer) avoids import cycles between
// block, codec, minmaxtree, and columnar.
package format

import "fmt"

// AttrType identifies the logical type of a stored attribute.
type AttrType uint8

const (
	AttrU32 AttrType = iota + 1
	AttrI64
	AttrBool
	AttrF32
	AttrString
	AttrU32Set
	AttrI64Set
	AttrF32Vec
	AttrTimestamp
	AttrU64
)

func (t AttrType) String() string {
	switch t {
	case AttrU32:
		return "u32"
	case AttrI64:
		return "i64"
	case AttrBool:
		return "bool"
	case AttrF32:
		return "f32"
	case AttrString:
		return "string"
	case AttrU32Set:
		return "u32set"
	case AttrI64Set:
		return "i64set"
	case AttrF32Vec:
		return "f32vec"
	case AttrTimestamp:
		return "timestamp"
	case AttrU64:
		return "u64"
	default:
		return fmt.Sprintf("AttrType(%d)", uint8(t))
	}
}

// IsMVA reports whether the attribute stores a set of values per row
// (u32set / i64set), which changes the block/row-list shape.
func (t AttrType) IsMVA() bool {
	return t == AttrU32Set || t == AttrI64Set
}

// IsWide reports whether a value occupies 8 bytes (i64/u64/i64set/timestamp)
// rather than 4.
func (t AttrType) IsWide() bool {
	return t == AttrI64 || t == AttrU64 || t == AttrI64Set || t == AttrTimestamp
}

// PackingTag identifies the per-block encoding chosen by the block packer (C1).
type PackingTag uint32

const (
	PackingConst PackingTag = iota + 1
	PackingTable
	PackingDelta
	PackingGeneric
	PackingHash
)

func (p PackingTag) String() string {
	switch p {
	case PackingConst:
		return "CONST"
	case PackingTable:
		return "TABLE"
	case PackingDelta:
		return "DELTA"
	case PackingGeneric:
		return "GENERIC"
	case PackingHash:
		return "HASH"
	default:
		return fmt.Sprintf("PackingTag(%d)", uint32(p))
	}
}

// RowListKind identifies how the row IDs for one distinct value inside a
// block are packed.
type RowListKind uint8

const (
	// RowListRow: exactly one row; the row ID is implicit (carried outside
	// the row-list payload, in the distinct-value entry's first-row field).
	RowListRow RowListKind = iota + 1
	// RowListBlock: <= rowids_per_block row IDs, delta-PFOR encoded.
	RowListBlock
	// RowListBlocksList: > rowids_per_block row IDs, chunked delta-PFOR.
	RowListBlocksList
)

func (k RowListKind) String() string {
	switch k {
	case RowListRow:
		return "ROW"
	case RowListBlock:
		return "ROW_BLOCK"
	case RowListBlocksList:
		return "ROW_BLOCKS_LIST"
	default:
		return fmt.Sprintf("RowListKind(%d)", uint8(k))
	}
}

// CodecKind names an integer codec. Only a subset of the historically
// recognized algorithm names is actually implemented;
// the rest are recognized as valid *names* (so settings round-trip and
// check_storage can tell "unknown name" from "known but unimplemented
// name") without pretending to implement every historical variant.
type CodecKind uint8

const (
	CodecPFOR CodecKind = iota + 1
	CodecStreamVByte
	CodecCopy
)

func (c CodecKind) String() string {
	switch c {
	case CodecPFOR:
		return "pfor"
	case CodecStreamVByte:
		return "streamvbyte"
	case CodecCopy:
		return "copy"
	default:
		return fmt.Sprintf("CodecKind(%d)", uint8(c))
	}
}

// ParseCodecKind maps a codec name (as found in settings / config) to a
// CodecKind. Recognized names that are not implemented here still parse
// (so a settings blob naming them is recognized as schema-valid) but
// CreateCodec in the codec package rejects them at construction time.
func ParseCodecKind(name string) (CodecKind, error) {
	switch name {
	case "pfor", "fastpfor128", "fastpfor256", "simdfastpfor128", "simdfastpfor256", "simdpfor":
		return CodecPFOR, nil
	case "streamvbyte", "libstreamvbyte":
		return CodecStreamVByte, nil
	case "copy":
		return CodecCopy, nil
	case "simple8b", "simple8b_rle", "varintgb":
		// Recognized names, not implemented; CreateCodec rejects them.
		return CodecKind(0xFF), nil
	default:
		return 0, fmt.Errorf("format: unknown codec name %q", name)
	}
}

// CompressionKind names the optional secondary compression applied to a
// packed block's bytes, layered on top of the integer codec, so a caller
// can trade CPU for size on cold, rarely-queried attributes.
type CompressionKind uint8

const (
	CompressionNone CompressionKind = iota + 1
	CompressionZstd
	CompressionS2
	CompressionLZ4
)

func (c CompressionKind) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("CompressionKind(%d)", uint8(c))
	}
}
