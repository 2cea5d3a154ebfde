// Package compress provides optional secondary compression for packed
// block payloads.
//
// Block payloads are already integer-compressed by the codec layer (delta,
// frame-of-reference, bitpacking); this package layers a general-purpose
// byte compressor on top for attributes where size matters more than decode
// latency, typically cold or rarely-filtered columns.
//
// Supported algorithms:
//   - None: passthrough (default; hot columns should stay uncompressed)
//   - Zstd: best ratio, moderate speed
//   - S2:   balanced ratio and speed
//   - LZ4:  fastest decompression, moderate ratio
//
// The algorithm is recorded in the container footer's settings, so a reader
// never has to sniff payload bytes. All codecs are safe for concurrent use;
// the zstd and lz4 implementations pool their encoder/decoder state.
package compress
