package compress

// ZstdCompressor provides Zstandard compression for block payloads. It is
// the right choice when compression ratio matters more than decode speed,
// e.g. archival column sets that are filtered rarely.
//
// Two backends exist behind build tags: the pure-Go klauspost encoder
// (default) and the cgo gozstd binding (build tag "gozstd") for hosts that
// already link libzstd.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
