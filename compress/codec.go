package compress

import (
	"fmt"

	"github.com/colstore/secondary/format"
)

// Compressor compresses one packed block payload.
//
// The input is a complete, already codec-encoded block payload. The
// returned slice is owned by the caller; the input is never modified.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor is the inverse of Compressor. The input must have been
// produced by the matching algorithm; corrupted or mismatched input
// returns an error.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions for implementations that share state
// between them.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec returns the Codec for the given compression kind. The target
// string names the caller's usage and only appears in the error message.
func CreateCodec(kind format.CompressionKind, target string) (Codec, error) {
	switch kind {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, kind)
	}
}

var builtinCodecs = map[format.CompressionKind]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a shared built-in Codec for the specified kind.
func GetCodec(kind format.CompressionKind) (Codec, error) {
	if codec, ok := builtinCodecs[kind]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression kind: %s", kind)
}
