package minmaxtree

import (
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// Marshal serializes the tree level-by-level, root first: each level's
// node count, then each node pair. Per-node encoding depends on the
// attribute's type:
//   - bool: one byte, (min<<1)|max, each 1 bit
//   - f32: each bound's u32 bit pattern as a varint
//   - otherwise: varint(min), varint(max-min) (non-negative delta)
func Marshal(t *Tree, attrType format.AttrType) []byte {
	var buf []byte
	for _, level := range t.levels {
		buf = codec.AppendVarint(buf, uint64(len(level)))
		for _, n := range level {
			buf = appendNode(buf, n, attrType)
		}
	}

	return buf
}

func appendNode(buf []byte, n Node, attrType format.AttrType) []byte {
	switch attrType {
	case format.AttrBool:
		b := byte((n.Min&1)<<1 | (n.Max & 1))

		return append(buf, b)
	case format.AttrF32:
		buf = codec.AppendVarint(buf, n.Min&0xFFFFFFFF)

		return codec.AppendVarint(buf, n.Max&0xFFFFFFFF)
	default:
		buf = codec.AppendVarint(buf, n.Min)

		return codec.AppendVarint(buf, n.Max-n.Min)
	}
}

// Unmarshal parses a tree blob produced by Marshal. leafCount is the
// expected number of leaf blocks, used only to sanity-check the final
// level's node count against errs.ErrCorruptMinMaxTree.
func Unmarshal(data []byte, attrType format.AttrType, leafCount int) (*Tree, int, error) {
	var levels [][]Node
	pos := 0
	for pos < len(data) {
		count, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, 0, errs.ErrCorruptMinMaxTree
		}
		pos += sz

		level := make([]Node, count)
		for i := range level {
			n, consumed, err := readNode(data[pos:], attrType)
			if err != nil {
				return nil, 0, err
			}
			level[i] = n
			pos += consumed
		}
		levels = append(levels, level)
	}

	if len(levels) == 0 {
		return nil, 0, errs.ErrCorruptMinMaxTree
	}
	last := levels[len(levels)-1]
	if leafCount > 0 && len(last) != leafCount {
		return nil, 0, errs.ErrCorruptMinMaxTree
	}

	return &Tree{levels: levels}, pos, nil
}

func readNode(data []byte, attrType format.AttrType) (Node, int, error) {
	switch attrType {
	case format.AttrBool:
		if len(data) < 1 {
			return Node{}, 0, errs.ErrCorruptMinMaxTree
		}
		b := data[0]

		return Node{Min: uint64(b>>1) & 1, Max: uint64(b) & 1}, 1, nil
	case format.AttrF32:
		minV, sz1, ok := codec.ReadVarint(data)
		if !ok {
			return Node{}, 0, errs.ErrCorruptMinMaxTree
		}
		maxV, sz2, ok := codec.ReadVarint(data[sz1:])
		if !ok {
			return Node{}, 0, errs.ErrCorruptMinMaxTree
		}

		return Node{Min: minV, Max: maxV}, sz1 + sz2, nil
	default:
		minV, sz1, ok := codec.ReadVarint(data)
		if !ok {
			return Node{}, 0, errs.ErrCorruptMinMaxTree
		}
		deltaV, sz2, ok := codec.ReadVarint(data[sz1:])
		if !ok {
			return Node{}, 0, errs.ErrCorruptMinMaxTree
		}

		return Node{Min: minV, Max: minV + deltaV}, sz1 + sz2, nil
	}
}
