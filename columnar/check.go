package columnar

import (
	"fmt"
)

// CheckStorage walks every header, min/max tree, PGM blob, and block of
// the container at filename, validating ranges and decode consistency
// without mutating anything. Every problem found is reported through
// errFn; progress strings go to progressFn. numRows, when positive, is
// the row count the host expects every attribute to have.
//
// The return value is the number of errors reported, so scripted callers
// do not have to count callback invocations themselves.
func CheckStorage(filename string, numRows int64, errFn func(string), progressFn func(string)) int {
	report := func(format string, args ...any) {
		if errFn != nil {
			errFn(fmt.Sprintf(format, args...))
		}
	}
	progress := func(format string, args ...any) {
		if progressFn != nil {
			progressFn(fmt.Sprintf(format, args...))
		}
	}

	errors := 0
	fail := func(format string, args ...any) {
		report(format, args...)
		errors++
	}

	c, err := Open(filename)
	if err != nil {
		fail("open: %v", err)

		return errors
	}
	defer c.Close()

	progress("checking %d attributes (storage version %d)", c.NumAttrs(), c.Version())

	for attr, h := range c.headers {
		progress("attribute %q (%s, %d rows, %d blocks)",
			h.name, h.attrType, h.totalRows, h.numBlocks())

		if numRows > 0 && int64(h.totalRows) != numRows {
			fail("attribute %q: row count %d, expected %d", h.name, h.totalRows, numRows)
		}

		expectBlocks := int((h.totalRows + RowsPerBlock - 1) / RowsPerBlock)
		if h.numBlocks() != expectBlocks {
			fail("attribute %q: %d blocks, expected %d for %d rows",
				h.name, h.numBlocks(), expectBlocks, h.totalRows)
		}

		if h.tree == nil {
			fail("attribute %q: missing min/max tree", h.name)
		} else {
			checkTree(h, fail)
		}

		if h.secondaryOffset+h.secondaryLen > uint64(c.fileSize) {
			fail("attribute %q: secondary section out of file bounds", h.name)
		} else if _, err := c.secondary(attr); err != nil {
			fail("attribute %q: secondary section: %v", h.name, err)
		}

		for b := 0; b < h.numBlocks(); b++ {
			bv, err := c.decodeBlock(attr, b)
			if err != nil {
				fail("attribute %q block %d: %v", h.name, b, err)

				continue
			}
			if len(bv.keys) != h.blockRows(b) {
				fail("attribute %q block %d: decoded %d rows, expected %d",
					h.name, b, len(bv.keys), h.blockRows(b))

				continue
			}
			// Set attributes store representatives, not elements; their
			// leaf bounds cover the elements and cannot be validated
			// against the value block alone.
			if h.tree != nil && b < h.tree.LeafCount() && !h.attrType.IsMVA() {
				checkLeafBounds(h, b, bv, fail)
			}
		}
	}

	progress("check finished: %d errors", errors)

	return errors
}

// checkTree validates the min/max soundness invariant: every internal
// node's bounds are exactly the fold of its children's.
func checkTree(h *attrHeader, fail func(string, ...any)) {
	tree := h.tree
	if tree.LeafCount() != h.numBlocks() {
		fail("attribute %q: min/max tree has %d leaves, expected %d",
			h.name, tree.LeafCount(), h.numBlocks())

		return
	}
	if !tree.CheckSound() {
		fail("attribute %q: min/max tree internal nodes disagree with children", h.name)
	}
}

// checkLeafBounds verifies a decoded block's values stay inside its
// min/max leaf. An all-null block keeps the documented (0,0) leaf and is
// skipped.
func checkLeafBounds(h *attrHeader, b int, bv *blockValues, fail func(string, ...any)) {
	leaf := h.tree.Leaf(b)

	for i, key := range bv.keys {
		if bv.present != nil && !bv.present[i] {
			continue
		}
		if key < leaf.Min || key > leaf.Max {
			fail("attribute %q block %d: value %d outside leaf bounds [%d, %d]",
				h.name, b, key, leaf.Min, leaf.Max)

			return
		}
	}
}
