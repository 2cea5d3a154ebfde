package columnar

// Storage version bounds for the columnar container. Open accepts
// [MinReadableVersion, CurrentVersion] and rejects anything else with an
// error naming both the file's version and the supported range. The vector
// sub-engine keeps its own, independent range; see the vector package.
const (
	CurrentVersion     uint32 = 12
	MinReadableVersion uint32 = 10
)

// RowsPerBlock is the number of rows summarized by one block; packing is
// chosen and min/max leaves are recorded at this granularity.
const RowsPerBlock = 65536

// DefaultSubblockSize is the default decode unit inside a block. Build
// callers may override it with WithSubblockSize; it must be a power of two
// and at least 128.
const DefaultSubblockSize = 128

// LibraryVersions reports the columnar container's supported storage
// version range.
func LibraryVersions() (current, minReadable uint32) {
	return CurrentVersion, MinReadableVersion
}
