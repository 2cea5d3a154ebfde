package columnar

import (
	"fmt"
	"os"
	"sync"

	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/compress"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
	"github.com/colstore/secondary/internal/options"
	"github.com/colstore/secondary/minmaxtree"
	"github.com/colstore/secondary/pgm"
)

// Columnar is the opened, immutable view of a container file. It owns the
// attribute headers exclusively and may be shared freely across
// goroutines; all reads go through positional ReadAt on a shared file
// handle, so no file-offset cursor is contended. Iterators and analyzers
// created from it own their decode scratch.
type Columnar struct {
	file     *os.File
	filename string
	fileSize int64

	version    uint32
	metaOffset uint64
	footer     *footer
	headers    []*attrHeader
	byName     map[string]int

	codec64    codec.Codec
	compressor compress.Codec

	cacheBudget int64
	caches      []*blockCache

	secondaries []*secondarySection
	secOnce     []sync.Once
	secErr      []error

	disableMu sync.Mutex
}

// Open reads and validates the container at filename. The storage version
// must fall in [MinReadableVersion, CurrentVersion].
func Open(filename string, opts ...ReaderOption) (*Columnar, error) {
	c := &Columnar{filename: filename, byName: make(map[string]int)}
	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", filename, err)
	}
	c.file = f

	if err := c.load(); err != nil {
		f.Close()

		return nil, err
	}

	return c, nil
}

func (c *Columnar) load() error {
	st, err := c.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %q: %w", c.filename, err)
	}
	c.fileSize = st.Size()

	var preamble [12]byte
	if _, err := c.file.ReadAt(preamble[:], 0); err != nil {
		return fmt.Errorf("%w: %q", errs.ErrTruncatedFile, c.filename)
	}

	c.version = wireEngine.Uint32(preamble[:4])
	if c.version < MinReadableVersion || c.version > CurrentVersion {
		return fmt.Errorf("%w: file %q has version %d, supported range is [%d, %d]",
			errs.ErrUnsupportedVersion, c.filename, c.version, MinReadableVersion, CurrentVersion)
	}

	c.metaOffset = wireEngine.Uint64(preamble[4:])
	if c.metaOffset < 12 || c.metaOffset >= uint64(c.fileSize) {
		return fmt.Errorf("%w: meta offset %d", errs.ErrInvalidFooter, c.metaOffset)
	}

	footerData := make([]byte, uint64(c.fileSize)-c.metaOffset)
	if _, err := c.file.ReadAt(footerData, int64(c.metaOffset)); err != nil {
		return fmt.Errorf("read footer of %q: %w", c.filename, err)
	}

	c.footer, err = parseFooter(footerData)
	if err != nil {
		return err
	}

	if err := c.loadHeaders(); err != nil {
		return err
	}

	c.caches = make([]*blockCache, len(c.headers))
	if c.cacheBudget > 0 {
		budget := newCacheBudget(c.cacheBudget)
		for i, h := range c.headers {
			c.caches[i] = newBlockCache(h.numBlocks(), budget)
		}
	}
	c.secondaries = make([]*secondarySection, len(c.headers))
	c.secOnce = make([]sync.Once, len(c.headers))
	c.secErr = make([]error, len(c.headers))

	c.codec64, err = codec.CreateCodec(c.footer.settings.codec64)
	if err != nil {
		return err
	}
	c.compressor, err = compress.CreateCodec(c.footer.settings.compression, "block")
	if err != nil {
		return err
	}

	return nil
}

// loadHeaders walks the header chain starting at the footer's first-header
// offset, attaching each attribute's PGM and min/max tree from the footer
// blobs.
func (c *Columnar) loadHeaders() error {
	c.headers = make([]*attrHeader, 0, c.footer.numAttrs)

	offset := c.footer.firstHeader
	for i := 0; i < c.footer.numAttrs; i++ {
		if offset == 0 || offset >= uint64(c.fileSize) {
			return fmt.Errorf("%w: header %d at offset %d", errs.ErrOffsetOutOfRange, i, offset)
		}

		// Headers are small; read a generous fixed window and reslice.
		window := uint64(c.fileSize) - offset
		if window > uint64(headerReadWindow) {
			window = uint64(headerReadWindow)
		}
		buf := make([]byte, window)
		if _, err := c.file.ReadAt(buf, int64(offset)); err != nil {
			return fmt.Errorf("read header %d of %q: %w", i, c.filename, err)
		}

		h, _, err := parseHeader(buf)
		if err != nil {
			return fmt.Errorf("attribute header %d: %w", i, err)
		}

		if n := len(h.blockOffsets); n > 0 && h.blockOffsets[n-1] >= uint64(c.fileSize) {
			return fmt.Errorf("%w: attribute %q", errs.ErrOffsetOutOfRange, h.name)
		}

		if len(c.footer.treeBlobs[i]) > 0 {
			tree, _, err := minmaxtree.Unmarshal(c.footer.treeBlobs[i], h.attrType, h.numBlocks())
			if err != nil {
				return fmt.Errorf("attribute %q: %w", h.name, err)
			}
			h.tree = tree
		}
		if len(c.footer.pgmBlobs[i]) > 0 {
			idx, _, err := pgm.Unmarshal(c.footer.pgmBlobs[i])
			if err != nil {
				return fmt.Errorf("attribute %q: %w", h.name, err)
			}
			h.pgmIndex = idx
		}

		c.byName[h.name] = i
		c.headers = append(c.headers, h)
		offset = h.nextHeaderOffset
	}

	return nil
}

// headerReadWindow bounds one header's serialized size: the block-offset
// delta list dominates, and even a few thousand blocks fit well inside it.
const headerReadWindow = 1 << 20

// Close releases the underlying file handle. Iterators created from this
// Columnar must be dropped first.
func (c *Columnar) Close() error {
	return c.file.Close()
}

// Version returns the container's storage version.
func (c *Columnar) Version() uint32 { return c.version }

// NumAttrs returns the number of attributes in the container.
func (c *Columnar) NumAttrs() int { return len(c.headers) }

// AttrName returns attribute i's name.
func (c *Columnar) AttrName(i int) string { return c.headers[i].name }

// AttrType returns attribute i's logical type.
func (c *Columnar) AttrType(i int) format.AttrType { return c.headers[i].attrType }

// AttrRows returns attribute i's total row count.
func (c *Columnar) AttrRows(i int) uint64 { return c.headers[i].totalRows }

// FindAttr resolves an attribute by name; ok is false if absent.
func (c *Columnar) FindAttr(name string) (int, bool) {
	i, ok := c.byName[name]

	return i, ok
}

// AttrEnabled reports whether attribute i is enabled. Disabled attributes
// are invisible to the query path but their data remains in the file.
func (c *Columnar) AttrEnabled(i int) bool {
	return c.footer.isEnabled(i)
}

// DisableAttribute clears attribute i's enabled bit and rewrites only the
// bitmap bytes in the footer. The method reopens the file by path with
// O_RDWR for the patch, so the file must be writable. Single-writer;
// concurrent disables are serialized. The in-memory enabled bit is
// cleared before the patch is written.
func (c *Columnar) DisableAttribute(i int) error {
	c.disableMu.Lock()
	defer c.disableMu.Unlock()

	if i < 0 || i >= len(c.headers) {
		return errs.ErrAttributeNotFound
	}
	c.footer.setEnabled(i, false)

	buf := make([]byte, 8*len(c.footer.enabled))
	for w, word := range c.footer.enabled {
		wireEngine.PutUint64(buf[w*8:], word)
	}

	rw, err := os.OpenFile(c.filename, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("reopen %q for disable: %w", c.filename, err)
	}
	defer rw.Close()

	if _, err := rw.WriteAt(buf, int64(c.metaOffset)+int64(c.footer.enabledByteOff)); err != nil {
		return fmt.Errorf("patch enabled bitmap of %q: %w", c.filename, err)
	}

	return rw.Sync()
}

// readBlockRecord reads and decompresses block blockIdx of attribute h,
// returning the packing tag and the raw payload.
func (c *Columnar) readBlockRecord(attr int, blockIdx int) (format.PackingTag, []byte, error) {
	h := c.headers[attr]
	start := h.blockOffsets[blockIdx]

	var end uint64
	if blockIdx+1 < len(h.blockOffsets) {
		end = h.blockOffsets[blockIdx+1]
	} else {
		end = h.secondaryOffset
	}
	if end <= start || end > uint64(c.fileSize) {
		return 0, nil, fmt.Errorf("%w: attribute %q block %d", errs.ErrOffsetOutOfRange, h.name, blockIdx)
	}

	record := make([]byte, end-start)
	if _, err := c.file.ReadAt(record, int64(start)); err != nil {
		return 0, nil, fmt.Errorf("read block %d of %q: %w", blockIdx, h.name, err)
	}

	tag, sz, ok := codec.ReadVarint(record)
	if !ok {
		return 0, nil, fmt.Errorf("%w: attribute %q block %d", errs.ErrDecodeResidue, h.name, blockIdx)
	}
	pos := sz

	payloadLen, sz, ok := codec.ReadVarint(record[pos:])
	if !ok {
		return 0, nil, fmt.Errorf("%w: attribute %q block %d", errs.ErrDecodeResidue, h.name, blockIdx)
	}
	pos += sz

	if pos+int(payloadLen) > len(record) {
		return 0, nil, fmt.Errorf("%w: attribute %q block %d", errs.ErrDecodeResidue, h.name, blockIdx)
	}

	packingTag := format.PackingTag(tag)
	switch packingTag {
	case format.PackingConst, format.PackingTable, format.PackingDelta,
		format.PackingGeneric, format.PackingHash:
	default:
		return 0, nil, fmt.Errorf("%w: tag %d in attribute %q block %d",
			errs.ErrUnknownPackingTag, tag, h.name, blockIdx)
	}

	payload, err := c.compressor.Decompress(record[pos : pos+int(payloadLen)])
	if err != nil {
		return 0, nil, fmt.Errorf("attribute %q block %d: %w", h.name, blockIdx, err)
	}

	return packingTag, payload, nil
}

// blockValues is one decoded block: storage keys plus, for HASH blocks, a
// presence mask (nil elsewhere, meaning all rows present).
type blockValues struct {
	keys    []uint64
	present []bool
}

func (bv *blockValues) sizeBytes() int64 {
	n := int64(len(bv.keys)) * 8
	n += int64(len(bv.present))

	return n
}

// BlockValues decodes one block, consulting the shared block cache when
// enabled.
func (c *Columnar) BlockValues(attr, blockIdx int) (*blockValues, error) {
	if cache := c.caches[attr]; cache != nil {
		if bv := cache.get(blockIdx); bv != nil {
			return bv, nil
		}
	}

	bv, err := c.decodeBlock(attr, blockIdx)
	if err != nil {
		return nil, err
	}

	if cache := c.caches[attr]; cache != nil {
		cache.put(blockIdx, bv)
	}

	return bv, nil
}

func (c *Columnar) decodeBlock(attr, blockIdx int) (*blockValues, error) {
	h := c.headers[attr]
	tag, payload, err := c.readBlockRecord(attr, blockIdx)
	if err != nil {
		return nil, err
	}

	return decodeBlockPayload(tag, payload, h.blockRows(blockIdx), c.footer.settings.subblockSize, c.codec64)
}

// Value reads attribute attr's storage key at row (access mode (a): full
// value read by row identifier). ok is false for null rows.
func (c *Columnar) Value(attr int, row uint64) (uint64, bool, error) {
	h := c.headers[attr]
	if row >= h.totalRows {
		return 0, false, fmt.Errorf("%w: row %d of %d", errs.ErrOffsetOutOfRange, row, h.totalRows)
	}

	bv, err := c.BlockValues(attr, int(row/RowsPerBlock))
	if err != nil {
		return 0, false, err
	}

	i := int(row % RowsPerBlock)
	if bv.present != nil && !bv.present[i] {
		return 0, false, nil
	}

	return bv.keys[i], true, nil
}

// secondary lazily loads and parses attribute attr's secondary-index
// section, once per Columnar.
func (c *Columnar) secondary(attr int) (*secondarySection, error) {
	c.secOnce[attr].Do(func() {
		h := c.headers[attr]
		data := make([]byte, h.secondaryLen)
		if _, err := c.file.ReadAt(data, int64(h.secondaryOffset)); err != nil {
			c.secErr[attr] = fmt.Errorf("read secondary of %q: %w", h.name, err)

			return
		}

		sec, err := parseSecondary(data, c.footer.settings.subblockSize, c.codec64)
		if err != nil {
			c.secErr[attr] = fmt.Errorf("attribute %q: %w", h.name, err)

			return
		}
		c.secondaries[attr] = sec
	})

	return c.secondaries[attr], c.secErr[attr]
}
