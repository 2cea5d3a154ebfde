package columnar

import (
	"sort"

	"github.com/colstore/secondary/block"
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// The secondary-index section of an attribute maps each distinct value to
// its ascending row-ID list. Distinct values are sorted and grouped into
// value groups of subblockSize entries; the PGM index returns an
// approximate ordinal in the distinct-value stream, and
// `group = ordinal >> log2(subblockSize)` names the group to decode. Each
// group record is independently decodable, located through the same
// cumulative-size index the DELTA/GENERIC blocks use.
//
// Group record layout:
//
//	[framed delta: sorted values in this group]
//	per value:
//	  [u8 row-list kind]
//	  [varint first row ID]
//	  kind != ROW: [varint payload length][row-list payload]
//
// The ROW kind stores its single row ID in the first-row field and carries
// no payload, which is what makes the one-row case (unique keys) cheap.

// encodeSecondary builds the section from the per-value row lists
// accumulated during the build. values must be sorted ascending and rows
// must hold a non-empty ascending row list per value.
func encodeSecondary(values []uint64, rows map[uint64][]uint64, subblockSize int, c codec.Codec) []byte {
	numGroups := (len(values) + subblockSize - 1) / subblockSize
	groups := make([][]byte, numGroups)

	for g := 0; g < numGroups; g++ {
		start := g * subblockSize
		end := start + subblockSize
		if end > len(values) {
			end = len(values)
		}
		groupValues := values[start:end]

		buf := block.AppendFramedDeltaU64(nil, groupValues, c)
		for _, v := range groupValues {
			rowIDs := rows[v]
			kind := block.ChooseRowListKind(len(rowIDs))
			buf = append(buf, byte(kind))
			buf = codec.AppendVarint(buf, rowIDs[0])

			switch kind {
			case format.RowListRow:
				// Single row carried in the first-row field.
			case format.RowListBlock:
				payload := block.EncodeRowBlock(rowIDs, c)
				buf = codec.AppendVarint(buf, uint64(len(payload)))
				buf = append(buf, payload...)
			case format.RowListBlocksList:
				payload := block.EncodeRowBlocksList(rowIDs, c)
				buf = codec.AppendVarint(buf, uint64(len(payload)))
				buf = append(buf, payload...)
			}
		}
		groups[g] = buf
	}

	head := codec.AppendVarint(nil, uint64(len(values)))

	return block.AppendSubIndexed(head, groups, c)
}

// secondarySection is the parsed-but-lazy reader side: the group index is
// split once, group payloads decode on demand.
type secondarySection struct {
	numDistinct  int
	subblockSize int
	codec        codec.Codec
	groups       [][]byte
}

func parseSecondary(data []byte, subblockSize int, c codec.Codec) (*secondarySection, error) {
	numDistinct, sz, ok := codec.ReadVarint(data)
	if !ok {
		return nil, errs.ErrDecodeResidue
	}

	numGroups := (int(numDistinct) + subblockSize - 1) / subblockSize
	groups, err := block.SplitSubIndexed(data[sz:], numGroups, c)
	if err != nil {
		return nil, err
	}

	return &secondarySection{
		numDistinct:  int(numDistinct),
		subblockSize: subblockSize,
		codec:        c,
		groups:       groups,
	}, nil
}

func (s *secondarySection) numGroups() int { return len(s.groups) }

func (s *secondarySection) groupLen(g int) int {
	start := g * s.subblockSize
	end := start + s.subblockSize
	if end > s.numDistinct {
		end = s.numDistinct
	}

	return end - start
}

// valueEntry is one decoded distinct-value entry.
type valueEntry struct {
	value    uint64
	kind     format.RowListKind
	firstRow uint64
	payload  []byte
}

// decodeGroup decodes group g's values and row-list envelopes; row-list
// payloads stay undecoded byte slices until a filter actually selects
// their value.
func (s *secondarySection) decodeGroup(g int) ([]valueEntry, error) {
	count := s.groupLen(g)
	data := s.groups[g]

	values, consumed, err := block.ReadFramedDeltaU64(data, count, s.codec)
	if err != nil {
		return nil, err
	}
	pos := consumed

	entries := make([]valueEntry, count)
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return nil, errs.ErrDecodeResidue
		}
		kind := format.RowListKind(data[pos])
		pos++

		firstRow, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, errs.ErrDecodeResidue
		}
		pos += sz

		entry := valueEntry{value: values[i], kind: kind, firstRow: firstRow}

		switch kind {
		case format.RowListRow:
			// No payload.
		case format.RowListBlock, format.RowListBlocksList:
			payloadLen, sz, ok := codec.ReadVarint(data[pos:])
			if !ok {
				return nil, errs.ErrDecodeResidue
			}
			pos += sz
			if pos+int(payloadLen) > len(data) {
				return nil, errs.ErrDecodeResidue
			}
			entry.payload = data[pos : pos+int(payloadLen)]
			pos += int(payloadLen)
		default:
			return nil, errs.ErrUnknownRowListKind
		}

		entries[i] = entry
	}

	if pos != len(data) {
		return nil, errs.ErrDecodeResidue
	}

	return entries, nil
}

// findValue locates value's entry, probing only the groups the PGM bounds
// name. loOrd/hiOrd are inclusive ordinal bounds from the PGM search.
func (s *secondarySection) findValue(value uint64, loOrd, hiOrd int) (*valueEntry, error) {
	if s.numDistinct == 0 {
		return nil, nil
	}

	firstGroup := loOrd / s.subblockSize
	lastGroup := hiOrd / s.subblockSize
	if lastGroup >= len(s.groups) {
		lastGroup = len(s.groups) - 1
	}

	for g := firstGroup; g <= lastGroup; g++ {
		entries, err := s.decodeGroup(g)
		if err != nil {
			return nil, err
		}

		i := sort.Search(len(entries), func(i int) bool { return entries[i].value >= value })
		if i < len(entries) && entries[i].value == value {
			return &entries[i], nil
		}
	}

	return nil, nil
}
