package vector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

func testEnvelope() *Envelope {
	return &Envelope{
		AttrName:       "embedding",
		AttrType:       format.AttrF32Vec,
		Dims:           384,
		Similarity:     SimilarityCosine,
		Quantization:   QuantInt8,
		M:              16,
		EFConstruction: 200,
		IndexBlob:      []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	e := testEnvelope()

	data, err := e.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestEnvelopeFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vec.idx")

	require.NoError(t, WriteFile(path, testEnvelope()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "embedding", got.AttrName)
	assert.Equal(t, uint32(384), got.Dims)
}

func TestEnvelopeRejectsNonFloatVector(t *testing.T) {
	e := testEnvelope()
	e.AttrType = format.AttrI64

	_, err := e.Marshal()
	require.ErrorIs(t, err, errs.ErrANNRequiresFloatVector)
}

func TestEnvelopeRejectsZeroDims(t *testing.T) {
	e := testEnvelope()
	e.Dims = 0

	_, err := e.Marshal()
	require.ErrorIs(t, err, errs.ErrVectorDimMismatch)
}

func TestEnvelopeVersionRange(t *testing.T) {
	data, err := testEnvelope().Marshal()
	require.NoError(t, err)

	// Patch the version to one below the readable floor.
	bad := append([]byte(nil), data...)
	engine.PutUint32(bad, MinReadableVersion-1)

	_, err = Unmarshal(bad)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
	assert.Contains(t, err.Error(), "supported range is [2, 3]")

	// And one above the current ceiling.
	engine.PutUint32(bad, CurrentVersion+1)
	_, err = Unmarshal(bad)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}
