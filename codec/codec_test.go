package codec

import (
	"testing"

	"github.com/colstore/secondary/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCodecs(t *testing.T) []Codec {
	t.Helper()

	kinds := []format.CodecKind{format.CodecPFOR, format.CodecStreamVByte, format.CodecCopy}
	codecs := make([]Codec, 0, len(kinds))
	for _, k := range kinds {
		c, err := CreateCodec(k)
		require.NoError(t, err)
		codecs = append(codecs, c)
	}

	return codecs
}

func TestCodec_RoundTripU32(t *testing.T) {
	values := []uint32{0, 1, 2, 100, 1000, 1<<20 + 5, 0, 0, 7}

	for _, c := range allCodecs(t) {
		encoded := c.EncodeU32(values)
		decoded, err := c.DecodeU32(encoded, len(values))
		require.NoError(t, err, "codec %s", c.Kind())
		assert.Equal(t, values, decoded, "codec %s", c.Kind())
	}
}

func TestCodec_RoundTripDeltaU32_Ascending(t *testing.T) {
	values := make([]uint32, 0, 200)
	for i := uint32(0); i < 200; i++ {
		values = append(values, 100+i*3)
	}

	for _, c := range allCodecs(t) {
		encoded := c.EncodeDeltaU32(values)
		decoded, err := c.DecodeDeltaU32(encoded, len(values))
		require.NoError(t, err, "codec %s", c.Kind())
		assert.Equal(t, values, decoded, "codec %s", c.Kind())
	}
}

func TestCodec_RoundTripDeltaU32_Descending(t *testing.T) {
	values := make([]uint32, 0, 150)
	for i := uint32(0); i < 150; i++ {
		values = append(values, 100000-i*17)
	}

	for _, c := range allCodecs(t) {
		encoded := c.EncodeDeltaU32(values)
		decoded, err := c.DecodeDeltaU32(encoded, len(values))
		require.NoError(t, err, "codec %s", c.Kind())
		assert.Equal(t, values, decoded, "codec %s", c.Kind())
	}
}

func TestCodec_RoundTripU64(t *testing.T) {
	values := []uint64{0, 1, 1 << 40, 1 << 63, 5, 5, 5}

	for _, c := range allCodecs(t) {
		encoded := c.EncodeU64(values)
		decoded, err := c.DecodeU64(encoded, len(values))
		require.NoError(t, err, "codec %s", c.Kind())
		assert.Equal(t, values, decoded, "codec %s", c.Kind())
	}
}

func TestCodec_RoundTripDeltaU64(t *testing.T) {
	values := []uint64{1000, 1100, 1150, 1150, 900, 2000}

	for _, c := range allCodecs(t) {
		encoded := c.EncodeDeltaU64(values)
		decoded, err := c.DecodeDeltaU64(encoded, len(values))
		require.NoError(t, err, "codec %s", c.Kind())
		assert.Equal(t, values, decoded, "codec %s", c.Kind())
	}
}

func TestCodec_EmptyInput(t *testing.T) {
	for _, c := range allCodecs(t) {
		encoded := c.EncodeU32(nil)
		decoded, err := c.DecodeU32(encoded, 0)
		require.NoError(t, err)
		assert.Empty(t, decoded)
	}
}

func TestBitPack32_RoundTrip(t *testing.T) {
	for _, bitWidth := range []int{0, 1, 3, 7, 8, 17, 32} {
		values := make([]uint32, 37)
		for i := range values {
			if bitWidth == 0 {
				values[i] = 0
			} else if bitWidth == 32 {
				values[i] = uint32(i * 7919)
			} else {
				maxV := uint32(1<<uint(bitWidth)) - 1
				values[i] = uint32(i*7919) % (maxV + 1)
			}
		}

		packed := BitPack32(values, bitWidth)
		unpacked := BitUnpack32(packed, len(values), bitWidth)
		assert.Equal(t, values, unpacked, "bitWidth=%d", bitWidth)
	}
}

func TestVarint_RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := AppendVarint(nil, v)
		got, n, ok := ReadVarint(buf)
		require.True(t, ok)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
	}
}
