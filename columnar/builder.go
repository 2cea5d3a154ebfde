package columnar

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/colstore/secondary/block"
	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/compress"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
	"github.com/colstore/secondary/internal/collision"
	"github.com/colstore/secondary/internal/options"
	"github.com/colstore/secondary/minmaxtree"
	"github.com/colstore/secondary/pgm"
)

// Builder is the block packer (C1): it buffers rows per attribute, chooses
// an encoding per 65536-row block, accumulates the per-value row lists and
// per-block min/max leaves, and on Finish assembles the final container.
//
// Rows are appended strictly sequentially per attribute (row IDs 0..N-1).
// A failed build unlinks every temp file and never leaves a partial final
// file behind; there is no retry.
type Builder struct {
	filename string
	settings settings

	codec64    codec.Codec
	compressor compress.Codec

	attrs  []*attrBuilder
	byName map[string]int

	cleanup  *cleanupGuard
	finished bool
}

type attrBuilder struct {
	schema attrSchema

	// Current block buffer.
	values  []uint64
	present []bool
	tracker *collision.Tracker

	// Whole-attribute accumulation.
	rowLists  map[uint64][]uint64
	leaves    []minmaxtree.Node
	totalRows uint64

	// Body tempfile state. Offsets are relative to the body start.
	tmp             *os.File
	tmpSize         uint64
	blockOffsets    []uint64
	secondaryOffset uint64
	secondaryLen    uint64

	// Set-attribute bounds for the current block: the value buffer only
	// holds each row's representative element, so the leaf bounds must be
	// folded over every element separately.
	setMin, setMax uint64
	setHasBounds   bool
}

// cleanupGuard records every temp path (and the final path once created)
// and removes all of them unless disarmed, so a failed build never leaves
// partial files behind.
type cleanupGuard struct {
	paths []string
	armed bool
}

func (g *cleanupGuard) add(path string) { g.paths = append(g.paths, path) }
func (g *cleanupGuard) disarm()         { g.armed = false }
func (g *cleanupGuard) run() {
	if !g.armed {
		return
	}
	for _, p := range g.paths {
		os.Remove(p)
	}
}

// NewBuilder creates a Builder that will write filename on Finish.
func NewBuilder(filename string, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		filename: filename,
		settings: defaultSettings(),
		byName:   make(map[string]int),
		cleanup:  &cleanupGuard{armed: true},
	}

	if err := options.Apply(b, opts...); err != nil {
		return nil, err
	}

	c64, err := codec.CreateCodec(b.settings.codec64)
	if err != nil {
		return nil, err
	}
	b.codec64 = c64

	comp, err := compress.CreateCodec(b.settings.compression, "block")
	if err != nil {
		return nil, err
	}
	b.compressor = comp

	return b, nil
}

// AddAttr declares an attribute before any rows are added to it and
// returns its index.
func (b *Builder) AddAttr(name string, attrType format.AttrType) (int, error) {
	if b.finished {
		return 0, errs.ErrBuilderAlreadyFinished
	}
	if !validAttrType(attrType) {
		return 0, fmt.Errorf("%w: %d", errs.ErrUnknownAttributeType, uint32(attrType))
	}
	if _, dup := b.byName[name]; dup {
		return 0, fmt.Errorf("%w: %q", errs.ErrDuplicateAttribute, name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.filename), ".tmp.attr.*")
	if err != nil {
		return 0, fmt.Errorf("create temp for %q: %w", name, err)
	}
	b.cleanup.add(tmp.Name())

	ab := &attrBuilder{
		schema:   attrSchema{name: name, attrType: attrType},
		rowLists: make(map[uint64][]uint64),
		tmp:      tmp,
	}
	if attrType == format.AttrString {
		ab.tracker = collision.NewTracker()
	}

	b.attrs = append(b.attrs, ab)
	b.byName[name] = len(b.attrs) - 1

	return len(b.attrs) - 1, nil
}

// Add appends one (row, key) pair to attribute attr. The key must already
// be in storage-key form (see I64Key and friends); row must be exactly the
// attribute's current row count.
func (b *Builder) Add(attr int, row uint64, key uint64) error {
	if b.finished {
		return errs.ErrBuilderAlreadyFinished
	}
	ab := b.attrs[attr]
	if row != ab.totalRows {
		return fmt.Errorf("columnar: attribute %q rows must be appended sequentially: got %d, want %d",
			ab.schema.name, row, ab.totalRows)
	}

	ab.values = append(ab.values, key)
	ab.present = append(ab.present, true)
	ab.rowLists[key] = append(ab.rowLists[key], row)
	ab.totalRows++

	if len(ab.values) == RowsPerBlock {
		return b.flushBlock(ab)
	}

	return nil
}

// AddString appends one string value, hashing it and tracking digest
// collisions; a collision inside the attribute fails the build because the
// stored digest would be ambiguous for equality filters.
func (b *Builder) AddString(attr int, row uint64, value string) error {
	ab := b.attrs[attr]
	if ab.schema.attrType != format.AttrString {
		return fmt.Errorf("%w: %q is not a string attribute", errs.ErrUnknownAttributeType, ab.schema.name)
	}

	key := StringKey(value)
	if err := ab.tracker.Track(value, key); err != nil {
		return err
	}

	return b.Add(attr, row, key)
}

// AddSet appends one row of a set attribute (u32set / i64set). Every
// element joins the secondary index and the block's min/max bounds, so
// set filters resolve exactly through the per-value row lists; the value
// block stores only the row's smallest element as a representative, which
// is why full value reads on set attributes return that representative
// and the analyzer refuses set attributes outright.
func (b *Builder) AddSet(attr int, row uint64, keys []uint64) error {
	if b.finished {
		return errs.ErrBuilderAlreadyFinished
	}
	ab := b.attrs[attr]
	if !ab.schema.attrType.IsMVA() {
		return fmt.Errorf("%w: %q is not a set attribute", errs.ErrUnknownAttributeType, ab.schema.name)
	}
	if row != ab.totalRows {
		return fmt.Errorf("columnar: attribute %q rows must be appended sequentially: got %d, want %d",
			ab.schema.name, row, ab.totalRows)
	}
	if len(keys) == 0 {
		return b.AddNullSet(attr, row)
	}

	rep := keys[0]
	seen := make(map[uint64]struct{}, len(keys))
	for _, k := range keys {
		if k < rep {
			rep = k
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		ab.rowLists[k] = append(ab.rowLists[k], row)
		if !ab.setHasBounds || k < ab.setMin {
			ab.setMin = k
		}
		if !ab.setHasBounds || k > ab.setMax {
			ab.setMax = k
		}
		ab.setHasBounds = true
	}

	ab.values = append(ab.values, rep)
	ab.present = append(ab.present, true)
	ab.totalRows++

	if len(ab.values) == RowsPerBlock {
		return b.flushBlock(ab)
	}

	return nil
}

// AddNullSet appends an empty set: the row matches no value filter and
// contributes nothing to the block bounds.
func (b *Builder) AddNullSet(attr int, row uint64) error {
	if b.finished {
		return errs.ErrBuilderAlreadyFinished
	}
	ab := b.attrs[attr]
	if !ab.schema.attrType.IsMVA() {
		return fmt.Errorf("%w: %q is not a set attribute", errs.ErrUnknownAttributeType, ab.schema.name)
	}
	if row != ab.totalRows {
		return fmt.Errorf("columnar: attribute %q rows must be appended sequentially: got %d, want %d",
			ab.schema.name, row, ab.totalRows)
	}

	ab.values = append(ab.values, 0)
	ab.present = append(ab.present, false)
	ab.totalRows++

	if len(ab.values) == RowsPerBlock {
		return b.flushBlock(ab)
	}

	return nil
}

// AddNull appends a null for a string attribute; the row is excluded from
// the secondary index and marked absent in the HASH block's null bitmap.
func (b *Builder) AddNull(attr int, row uint64) error {
	if b.finished {
		return errs.ErrBuilderAlreadyFinished
	}
	ab := b.attrs[attr]
	if ab.schema.attrType != format.AttrString {
		return fmt.Errorf("%w: nulls are only supported for string attributes", errs.ErrUnknownAttributeType)
	}
	if row != ab.totalRows {
		return fmt.Errorf("columnar: attribute %q rows must be appended sequentially: got %d, want %d",
			ab.schema.name, row, ab.totalRows)
	}

	ab.values = append(ab.values, 0)
	ab.present = append(ab.present, false)
	ab.totalRows++

	if len(ab.values) == RowsPerBlock {
		return b.flushBlock(ab)
	}

	return nil
}

// flushBlock packs the buffered rows into one block, appends it to the
// attribute's body tempfile, and resets the buffer.
func (b *Builder) flushBlock(ab *attrBuilder) error {
	if len(ab.values) == 0 {
		return nil
	}

	leaf := minmaxtree.Node{Min: ab.values[0], Max: ab.values[0]}
	hasPresent := false
	for i, v := range ab.values {
		if !ab.present[i] {
			continue
		}
		if !hasPresent {
			leaf = minmaxtree.Node{Min: v, Max: v}
			hasPresent = true

			continue
		}
		if v < leaf.Min {
			leaf.Min = v
		}
		if v > leaf.Max {
			leaf.Max = v
		}
	}
	if !hasPresent {
		// An all-null block keeps the zero (min,max) leaf. Known to be a
		// false positive for filters like ANY() >= 0.
		leaf = minmaxtree.Node{}
	}
	if ab.schema.attrType.IsMVA() {
		// The buffer only saw representatives; the true bounds were folded
		// over every set element as rows arrived.
		if ab.setHasBounds {
			leaf = minmaxtree.Node{Min: ab.setMin, Max: ab.setMax}
		} else {
			leaf = minmaxtree.Node{}
		}
		ab.setHasBounds = false
	}
	ab.leaves = append(ab.leaves, leaf)

	tag, payload, err := b.packBlock(ab)
	if err != nil {
		return err
	}

	compressed, err := b.compressor.Compress(payload)
	if err != nil {
		return err
	}

	record := codec.AppendVarint(nil, uint64(tag))
	record = codec.AppendVarint(record, uint64(len(compressed)))
	record = append(record, compressed...)

	ab.blockOffsets = append(ab.blockOffsets, ab.tmpSize)
	if _, err := ab.tmp.Write(record); err != nil {
		return fmt.Errorf("write block for %q: %w", ab.schema.name, err)
	}
	ab.tmpSize += uint64(len(record))

	ab.values = ab.values[:0]
	ab.present = ab.present[:0]

	return nil
}

// packBlock chooses the encoding for the buffered rows and encodes the
// payload. String attributes override GENERIC and DELTA to HASH, and any
// block containing nulls must be HASH since only HASH carries a null
// bitmap.
func (b *Builder) packBlock(ab *attrBuilder) (format.PackingTag, []byte, error) {
	isString := ab.schema.attrType == format.AttrString

	blockHasNull := false
	for _, p := range ab.present {
		if !p {
			blockHasNull = true

			break
		}
	}

	tag := block.ChoosePacking(ab.values)
	if isString {
		if blockHasNull || tag == format.PackingGeneric || tag == format.PackingDelta {
			tag = format.PackingHash
		}
	}

	switch tag {
	case format.PackingConst:
		return tag, block.EncodeConst(ab.values[0]), nil
	case format.PackingTable:
		payload, err := block.EncodeTable(ab.values, b.settings.subblockSize, b.codec64)

		return tag, payload, err
	case format.PackingDelta:
		return tag, block.EncodeDelta(ab.values, b.settings.subblockSize, b.codec64), nil
	case format.PackingGeneric:
		return tag, block.EncodeGeneric(ab.values, b.settings.subblockSize, b.codec64), nil
	case format.PackingHash:
		return tag, block.EncodeHash(ab.values, ab.present, b.settings.subblockSize), nil
	default:
		return 0, nil, errs.ErrUnknownPackingTag
	}
}

// Finish flushes every attribute's last partial block, writes the
// secondary-index sections, and assembles the final container file. The
// Builder is unusable afterwards.
func (b *Builder) Finish() (err error) {
	if b.finished {
		return errs.ErrBuilderAlreadyFinished
	}
	b.finished = true

	defer func() {
		if err != nil {
			b.cleanup.run()
		}
		for _, ab := range b.attrs {
			ab.tmp.Close()
			os.Remove(ab.tmp.Name())
		}
	}()

	pgmBlobs := make([][]byte, len(b.attrs))
	treeBlobs := make([][]byte, len(b.attrs))

	for i, ab := range b.attrs {
		if err := b.flushBlock(ab); err != nil {
			return err
		}

		// Secondary index: sorted distinct values, grouped, with one
		// row list per value.
		distinct := make([]uint64, 0, len(ab.rowLists))
		for v := range ab.rowLists {
			distinct = append(distinct, v)
		}
		sort.Slice(distinct, func(a, c int) bool { return distinct[a] < distinct[c] })

		secondary := encodeSecondary(distinct, ab.rowLists, b.settings.subblockSize, b.codec64)
		ab.secondaryOffset = ab.tmpSize
		ab.secondaryLen = uint64(len(secondary))
		if _, err := ab.tmp.Write(secondary); err != nil {
			return fmt.Errorf("write secondary for %q: %w", ab.schema.name, err)
		}
		ab.tmpSize += uint64(len(secondary))

		pgmBlobs[i] = pgm.Marshal(pgm.Build(distinct))
		treeBlobs[i] = minmaxtree.Marshal(minmaxtree.Build(ab.leaves), ab.schema.attrType)
	}

	return b.assemble(pgmBlobs, treeBlobs)
}

// assemble concatenates the attribute bodies behind the 12-byte preamble,
// then writes the chained headers and the footer, and finally patches the
// meta offset into the preamble.
func (b *Builder) assemble(pgmBlobs, treeBlobs [][]byte) error {
	out, err := os.Create(b.filename)
	if err != nil {
		return fmt.Errorf("create %q: %w", b.filename, err)
	}
	b.cleanup.add(b.filename)
	defer out.Close()

	// Preamble with a zero meta offset; patched at the end.
	preamble := wireEngine.AppendUint32(nil, CurrentVersion)
	preamble = wireEngine.AppendUint64(preamble, 0)
	if _, err := out.Write(preamble); err != nil {
		return err
	}

	pos := uint64(len(preamble))
	headers := make([]*attrHeader, len(b.attrs))

	for i, ab := range b.attrs {
		if _, err := ab.tmp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.Copy(out, ab.tmp); err != nil {
			return fmt.Errorf("copy body for %q: %w", ab.schema.name, err)
		}

		h := &attrHeader{
			name:            ab.schema.name,
			attrType:        ab.schema.attrType,
			hasStringHashes: ab.schema.attrType == format.AttrString,
			totalRows:       ab.totalRows,
			bodyOffset:      pos,
			secondaryOffset: pos + ab.secondaryOffset,
			secondaryLen:    ab.secondaryLen,
		}
		h.blockOffsets = make([]uint64, len(ab.blockOffsets))
		for j, rel := range ab.blockOffsets {
			h.blockOffsets[j] = pos + rel
		}
		headers[i] = h

		pos += ab.tmpSize
	}

	// Chain the headers. next_header_offset is a fixed-width u64, so
	// marshaling twice with patched offsets keeps every length stable.
	headerOffsets := make([]uint64, len(headers))
	cursor := pos
	for i, h := range headers {
		headerOffsets[i] = cursor
		cursor += uint64(len(marshalHeader(h)))
	}
	for i, h := range headers {
		if i+1 < len(headers) {
			h.nextHeaderOffset = headerOffsets[i+1]
		}
		if _, err := out.Write(marshalHeader(h)); err != nil {
			return err
		}
	}

	metaOffset := cursor

	f := &footer{
		numAttrs:    len(b.attrs),
		enabled:     make([]uint64, (len(b.attrs)+63)/64),
		settings:    b.settings,
		pgmBlobs:    pgmBlobs,
		treeBlobs:   treeBlobs,
		bodyOffsets: make([]uint64, len(b.attrs)),
		blockCounts: make([]uint64, len(b.attrs)),
	}
	if len(headers) > 0 {
		f.firstHeader = headerOffsets[0]
	}
	for i := range b.attrs {
		f.setEnabled(i, true)
		f.bodyOffsets[i] = headers[i].bodyOffset
		f.blockCounts[i] = uint64(len(headers[i].blockOffsets))
	}

	if _, err := out.Write(marshalFooter(f)); err != nil {
		return err
	}

	if _, err := out.WriteAt(wireEngine.AppendUint64(nil, metaOffset), 4); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}

	b.cleanup.disarm()

	return nil
}
