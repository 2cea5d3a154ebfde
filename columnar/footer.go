package columnar

import (
	"fmt"

	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// footer is the meta block at meta_offset:
//
//	[u64 next_meta_offset (0 in this revision)]
//	[u32 num_attributes]
//	[varint word count][u64-packed enabled bitmap]
//	[u32 subblock_size][varint-string codec32][varint-string codec64]
//	[u32 rowids_per_block][u8 compression]
//	[u64 first_header_offset]
//	[num_attributes x varint delta-encoded cumulative block-start offsets]
//	[num_attributes x varint block counts]
//	[per attribute: varint len + PGM blob]
//	[per attribute: varint len + min/max tree blob]
//
// The enabled bitmap is the only mutable bytes in the file; its position
// is recomputed from the parse so DisableAttribute can rewrite it in
// place.
type footer struct {
	numAttrs       int
	enabled        []uint64
	settings       settings
	firstHeader    uint64
	bodyOffsets    []uint64 // cumulative block-start offset per attribute
	blockCounts    []uint64
	pgmBlobs       [][]byte
	treeBlobs      [][]byte
	enabledByteOff int // offset of the bitmap words relative to meta_offset
}

func (f *footer) isEnabled(attr int) bool {
	return f.enabled[attr/64]&(1<<uint(attr%64)) != 0
}

func (f *footer) setEnabled(attr int, enabled bool) {
	if enabled {
		f.enabled[attr/64] |= 1 << uint(attr%64)
	} else {
		f.enabled[attr/64] &^= 1 << uint(attr%64)
	}
}

func marshalFooter(f *footer) []byte {
	buf := wireEngine.AppendUint64(nil, 0) // next_meta_offset
	buf = wireEngine.AppendUint32(buf, uint32(f.numAttrs))

	buf = codec.AppendVarint(buf, uint64(len(f.enabled)))
	for _, w := range f.enabled {
		buf = wireEngine.AppendUint64(buf, w)
	}

	buf = wireEngine.AppendUint32(buf, uint32(f.settings.subblockSize))
	buf = appendVarString(buf, f.settings.codec32.String())
	buf = appendVarString(buf, f.settings.codec64.String())
	buf = wireEngine.AppendUint32(buf, uint32(f.settings.rowidsPerBlock))
	buf = append(buf, byte(f.settings.compression))

	buf = wireEngine.AppendUint64(buf, f.firstHeader)

	prev := uint64(0)
	for _, off := range f.bodyOffsets {
		buf = codec.AppendVarint(buf, off-prev)
		prev = off
	}
	for _, n := range f.blockCounts {
		buf = codec.AppendVarint(buf, n)
	}

	for _, blob := range f.pgmBlobs {
		buf = codec.AppendVarint(buf, uint64(len(blob)))
		buf = append(buf, blob...)
	}
	for _, blob := range f.treeBlobs {
		buf = codec.AppendVarint(buf, uint64(len(blob)))
		buf = append(buf, blob...)
	}

	return buf
}

func parseFooter(data []byte) (*footer, error) {
	f := &footer{}
	pos := 0

	if len(data) < 12 {
		return nil, errs.ErrInvalidFooter
	}
	if next := wireEngine.Uint64(data); next != 0 {
		return nil, fmt.Errorf("%w: unsupported chained meta offset %d", errs.ErrInvalidFooter, next)
	}
	pos += 8

	f.numAttrs = int(wireEngine.Uint32(data[pos:]))
	pos += 4

	wordCount, sz, ok := codec.ReadVarint(data[pos:])
	if !ok {
		return nil, errs.ErrInvalidFooter
	}
	pos += sz
	f.enabledByteOff = pos

	if pos+8*int(wordCount) > len(data) {
		return nil, errs.ErrInvalidFooter
	}
	f.enabled = make([]uint64, wordCount)
	for i := range f.enabled {
		f.enabled[i] = wireEngine.Uint64(data[pos:])
		pos += 8
	}
	if int(wordCount) != (f.numAttrs+63)/64 {
		return nil, errs.ErrInvalidFooter
	}

	if pos+4 > len(data) {
		return nil, errs.ErrInvalidFooter
	}
	f.settings.subblockSize = int(wireEngine.Uint32(data[pos:]))
	pos += 4

	codec32Name, sz, err := readVarString(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += sz

	codec64Name, sz, err := readVarString(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += sz

	f.settings.codec32, err = format.ParseCodecKind(codec32Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownCodec, codec32Name)
	}
	f.settings.codec64, err = format.ParseCodecKind(codec64Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownCodec, codec64Name)
	}

	if pos+5 > len(data) {
		return nil, errs.ErrInvalidFooter
	}
	f.settings.rowidsPerBlock = int(wireEngine.Uint32(data[pos:]))
	pos += 4
	f.settings.compression = format.CompressionKind(data[pos])
	pos++

	if pos+8 > len(data) {
		return nil, errs.ErrInvalidFooter
	}
	f.firstHeader = wireEngine.Uint64(data[pos:])
	pos += 8

	f.bodyOffsets = make([]uint64, f.numAttrs)
	prev := uint64(0)
	for i := range f.bodyOffsets {
		delta, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, errs.ErrInvalidFooter
		}
		pos += sz
		f.bodyOffsets[i] = prev + delta
		prev = f.bodyOffsets[i]
	}

	f.blockCounts = make([]uint64, f.numAttrs)
	for i := range f.blockCounts {
		n, sz, ok := codec.ReadVarint(data[pos:])
		if !ok {
			return nil, errs.ErrInvalidFooter
		}
		pos += sz
		f.blockCounts[i] = n
	}

	f.pgmBlobs = make([][]byte, f.numAttrs)
	for i := range f.pgmBlobs {
		blob, sz, err := readBlob(data[pos:])
		if err != nil {
			return nil, err
		}
		pos += sz
		f.pgmBlobs[i] = blob
	}

	f.treeBlobs = make([][]byte, f.numAttrs)
	for i := range f.treeBlobs {
		blob, sz, err := readBlob(data[pos:])
		if err != nil {
			return nil, err
		}
		pos += sz
		f.treeBlobs[i] = blob
	}

	return f, nil
}

func readBlob(data []byte) ([]byte, int, error) {
	blobLen, sz, ok := codec.ReadVarint(data)
	if !ok {
		return nil, 0, errs.ErrInvalidFooter
	}
	if sz+int(blobLen) > len(data) {
		return nil, 0, errs.ErrInvalidFooter
	}

	return data[sz : sz+int(blobLen)], sz + int(blobLen), nil
}
