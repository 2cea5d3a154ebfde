package block

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/format"
)

const testSubblockSize = 128

func testCodec(t *testing.T) codec.Codec {
	t.Helper()

	c, err := codec.CreateCodec(format.CodecPFOR)
	require.NoError(t, err)

	return c
}

func TestChoosePacking(t *testing.T) {
	tests := []struct {
		name   string
		values []uint64
		want   format.PackingTag
	}{
		{"empty", nil, format.PackingConst},
		{"single value repeated", repeat(42, 1000), format.PackingConst},
		{"four distinct", cycle([]uint64{10, 20, 30, 40}, 2000), format.PackingTable},
		{"monotone ascending", ramp(100, 3, 10000), format.PackingDelta},
		{"monotone descending", rampDown(1<<40, 7, 10000), format.PackingDelta},
		{"random high cardinality", pseudoRandom(10000), format.PackingGeneric},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ChoosePacking(tc.values))
		})
	}
}

func TestChoosePackingTableBoundary(t *testing.T) {
	// Exactly 255 distinct values still packs as TABLE; 256 does not.
	v255 := make([]uint64, 0, 1000)
	for i := 0; i < 1000; i++ {
		v255 = append(v255, uint64(i%255)*3)
	}
	assert.Equal(t, format.PackingTable, ChoosePacking(v255))

	v256 := make([]uint64, 0, 1000)
	for i := 0; i < 1000; i++ {
		v256 = append(v256, uint64(i%256)*3)
	}
	assert.NotEqual(t, format.PackingTable, ChoosePacking(v256))
}

func TestConstRoundTrip(t *testing.T) {
	payload := EncodeConst(42)

	decoded, err := DecodeConst(payload, 1000)
	require.NoError(t, err)
	require.Len(t, decoded, 1000)
	for _, v := range decoded {
		require.Equal(t, uint64(42), v)
	}
}

func TestTableRoundTrip(t *testing.T) {
	c := testCodec(t)
	values := cycle([]uint64{10, 20, 30, 40}, 2000)

	payload, err := EncodeTable(values, testSubblockSize, c)
	require.NoError(t, err)

	decoded, err := DecodeTable(payload, len(values), testSubblockSize, c)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestTableRoundTripShortTail(t *testing.T) {
	c := testCodec(t)
	// 300 rows: two full subblocks plus a short 44-row tail.
	values := cycle([]uint64{7, 9, 11}, 300)

	payload, err := EncodeTable(values, testSubblockSize, c)
	require.NoError(t, err)

	decoded, err := DecodeTable(payload, len(values), testSubblockSize, c)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestTableSingleDistinctOrdinalWidthZero(t *testing.T) {
	c := testCodec(t)
	values := repeat(5, 200)

	payload, err := EncodeTable(values, testSubblockSize, c)
	require.NoError(t, err)

	decoded, err := DecodeTable(payload, len(values), testSubblockSize, c)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestTableTooManyDistinct(t *testing.T) {
	c := testCodec(t)
	values := make([]uint64, 300)
	for i := range values {
		values[i] = uint64(i)
	}

	_, err := EncodeTable(values, testSubblockSize, c)
	require.Error(t, err)
}

func TestDeltaRoundTripAscending(t *testing.T) {
	c := testCodec(t)
	values := ramp(100, 3, 10000)

	payload := EncodeDelta(values, testSubblockSize, c)

	decoded, err := DecodeDelta(payload, len(values), testSubblockSize, c)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestDeltaRoundTripDescending(t *testing.T) {
	c := testCodec(t)
	values := rampDown(1<<40, 7, 10000)

	payload := EncodeDelta(values, testSubblockSize, c)

	decoded, err := DecodeDelta(payload, len(values), testSubblockSize, c)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestDeltaSubblockDecode(t *testing.T) {
	c := testCodec(t)
	values := ramp(0, 1, 1000)

	payload := EncodeDelta(values, testSubblockSize, c)

	numSub := NumSubblocks(len(values), testSubblockSize)
	for idx := 0; idx < numSub; idx++ {
		start, end := subblockBounds(idx, len(values), testSubblockSize)
		sub, err := DecodeDeltaSubblock(payload, idx, numSub, end-start, c)
		require.NoError(t, err)
		assert.Equal(t, values[start:end], sub)
	}
}

func TestGenericRoundTrip(t *testing.T) {
	c := testCodec(t)
	values := pseudoRandom(200000 / 16)

	payload := EncodeGeneric(values, testSubblockSize, c)

	decoded, err := DecodeGeneric(payload, len(values), testSubblockSize, c)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestGenericSubblockDecode(t *testing.T) {
	c := testCodec(t)
	values := pseudoRandom(1000)

	payload := EncodeGeneric(values, testSubblockSize, c)

	numSub := NumSubblocks(len(values), testSubblockSize)
	start, end := subblockBounds(3, len(values), testSubblockSize)
	sub, err := DecodeGenericSubblock(payload, 3, numSub, end-start, c)
	require.NoError(t, err)
	assert.Equal(t, values[start:end], sub)
}

func TestHashRoundTripAllPresent(t *testing.T) {
	hashes := pseudoRandom(500)

	payload := EncodeHash(hashes, nil, testSubblockSize)

	decoded, present, err := DecodeHash(payload, len(hashes), testSubblockSize)
	require.NoError(t, err)
	assert.Equal(t, hashes, decoded)
	for _, p := range present {
		assert.True(t, p)
	}
}

func TestHashRoundTripWithNulls(t *testing.T) {
	hashes := pseudoRandom(500)
	present := make([]bool, len(hashes))
	for i := range present {
		present[i] = i%3 != 0
	}

	payload := EncodeHash(hashes, present, testSubblockSize)

	decoded, gotPresent, err := DecodeHash(payload, len(hashes), testSubblockSize)
	require.NoError(t, err)
	assert.Equal(t, present, gotPresent)
	for i := range hashes {
		if present[i] {
			assert.Equal(t, hashes[i], decoded[i])
		} else {
			assert.Zero(t, decoded[i])
		}
	}
}

func TestDecodeCorruptPayloads(t *testing.T) {
	c := testCodec(t)

	_, err := DecodeConst(nil, 10)
	assert.Error(t, err)

	_, err = DecodeTable([]byte{}, 10, testSubblockSize, c)
	assert.Error(t, err)

	_, err = DecodeDelta([]byte{1, 2, 3}, 10, testSubblockSize, c)
	assert.Error(t, err)

	_, _, err = DecodeHash([]byte{0xFF}, 10, testSubblockSize)
	assert.Error(t, err)
}

func repeat(v uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = v
	}

	return out
}

func cycle(vs []uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = vs[i%len(vs)]
	}

	return out
}

func ramp(base, step uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = base + step*uint64(i)
	}

	return out
}

func rampDown(base, step uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = base - step*uint64(i)
	}

	return out
}

func pseudoRandom(n int) []uint64 {
	rng := rand.New(rand.NewSource(1))
	out := make([]uint64, n)
	for i := range out {
		out[i] = rng.Uint64() >> 8
	}

	return out
}
