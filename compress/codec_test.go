package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/secondary/format"
)

func testPayload(t *testing.T, size int) []byte {
	t.Helper()

	// Shape the payload like a real packed block: long runs of small
	// deltas with occasional outliers, so the compressors have something
	// to bite on.
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, size)
	for i := range data {
		if rng.Intn(50) == 0 {
			data[i] = byte(rng.Intn(256))
		} else {
			data[i] = byte(i % 7)
		}
	}

	return data
}

func TestCreateCodecRoundTrip(t *testing.T) {
	kinds := []format.CompressionKind{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	}

	payload := testPayload(t, 16*1024)

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			codec, err := CreateCodec(kind, "block")
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.True(t, bytes.Equal(payload, decompressed))
		})
	}
}

func TestCreateCodecInvalidKind(t *testing.T) {
	_, err := CreateCodec(format.CompressionKind(0xAA), "block")
	require.Error(t, err)

	_, err = GetCodec(format.CompressionKind(0xAA))
	require.Error(t, err)
}

func TestCompressEmptyPayload(t *testing.T) {
	for _, kind := range []format.CompressionKind{format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		codec, err := GetCodec(kind)
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)

		decompressed, err := codec.Decompress(compressed)
		require.NoError(t, err)
		assert.Empty(t, decompressed)
	}
}

func TestNoOpSharesMemory(t *testing.T) {
	payload := testPayload(t, 128)
	codec := NewNoOpCompressor()

	compressed, err := codec.Compress(payload)
	require.NoError(t, err)
	assert.Equal(t, &payload[0], &compressed[0])
}

func TestCompressionActuallyShrinks(t *testing.T) {
	payload := testPayload(t, 64*1024)

	for _, kind := range []format.CompressionKind{format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		codec, err := GetCodec(kind)
		require.NoError(t, err)

		compressed, err := codec.Compress(payload)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(payload), "%s should shrink a repetitive payload", kind)
	}
}
