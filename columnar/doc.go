// Package columnar is the read/write engine for per-attribute columnar
// storage and its secondary index.
//
// A Builder buffers (rowID, value) pairs per attribute, packs them into
// 65536-row blocks (choosing among CONST, TABLE, DELTA, GENERIC, and HASH
// encodings per block), and writes a single self-contained file: payload
// blocks, a per-attribute secondary-index section mapping each distinct
// value to its row-ID list, chained attribute headers, and a footer linking
// block offsets, PGM indexes, and min/max trees.
//
// A Columnar opens such a file and serves two access modes: full value
// reads by row ID, and predicate-driven construction of sorted row-ID
// iterators used upstream as a prefilter. Filters prune candidate blocks
// through the min/max tree, locate matching distinct values through the
// PGM index, and stream row IDs through value-exact iterators, a
// block-list iterator, or a full-scan analyzer, with the result optionally
// coalesced into a dense or sparse bitmap depending on estimated result
// size.
//
// The Columnar instance and its headers are immutable after Open and safe
// to share across goroutines; all of them read through positional ReadAt
// on the Columnar's one file handle, and every iterator owns its decode
// scratch. The only mutable on-disk state is the footer's
// attribute-enabled bitmap.
package columnar
