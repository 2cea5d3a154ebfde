package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/secondary/format"
)

func TestChooseRowListKind(t *testing.T) {
	assert.Equal(t, format.RowListRow, ChooseRowListKind(0))
	assert.Equal(t, format.RowListRow, ChooseRowListKind(1))
	assert.Equal(t, format.RowListBlock, ChooseRowListKind(2))
	assert.Equal(t, format.RowListBlock, ChooseRowListKind(RowsPerBlock))
	assert.Equal(t, format.RowListBlocksList, ChooseRowListKind(RowsPerBlock+1))
}

func TestRowBlockRoundTrip(t *testing.T) {
	c := testCodec(t)
	rowIDs := ramp(5, 13, 900)

	payload := EncodeRowBlock(rowIDs, c)

	decoded, err := DecodeRowBlock(payload, c)
	require.NoError(t, err)
	assert.Equal(t, rowIDs, decoded)
}

func TestRowBlocksListRoundTrip(t *testing.T) {
	c := testCodec(t)
	rowIDs := ramp(0, 3, 5000) // five chunks

	payload := EncodeRowBlocksList(rowIDs, c)

	list, err := ParseRowBlocksList(payload, c)
	require.NoError(t, err)
	require.Len(t, list.Chunks(), 5)

	var all []uint64
	prevMax := uint64(0)
	for i, chunk := range list.Chunks() {
		if i > 0 {
			// Chunk ranges are disjoint and ascending.
			assert.Greater(t, chunk.Min, prevMax)
		}
		prevMax = chunk.Max

		rows, err := list.DecodeChunk(i)
		require.NoError(t, err)
		assert.Equal(t, chunk.Min, rows[0])
		assert.Equal(t, chunk.Max, rows[len(rows)-1])
		all = append(all, rows...)
	}

	assert.Equal(t, rowIDs, all)
}

func TestRowBlocksListChunkBoundsWithoutDecode(t *testing.T) {
	c := testCodec(t)
	rowIDs := ramp(100, 1, RowsPerBlock*3+17)

	payload := EncodeRowBlocksList(rowIDs, c)

	list, err := ParseRowBlocksList(payload, c)
	require.NoError(t, err)
	require.Len(t, list.Chunks(), 4)

	// The chunk index alone is enough to skip chunks outside a row window.
	assert.Equal(t, uint64(100), list.Chunks()[0].Min)
	assert.Equal(t, uint64(100+RowsPerBlock-1), list.Chunks()[0].Max)
	assert.Equal(t, uint64(100+RowsPerBlock*3), list.Chunks()[3].Min)
}

func TestParseRowBlocksListCorrupt(t *testing.T) {
	c := testCodec(t)

	_, err := ParseRowBlocksList(nil, c)
	assert.Error(t, err)

	// Truncation inside the chunk payload area parses (the chunk index
	// sits at the front) but must surface as an error on chunk decode.
	payload := EncodeRowBlocksList(ramp(0, 1, 3000), c)
	list, err := ParseRowBlocksList(payload[:len(payload)-10], c)
	if err == nil {
		_, err = list.DecodeChunk(len(list.Chunks()) - 1)
	}
	assert.Error(t, err)
}
