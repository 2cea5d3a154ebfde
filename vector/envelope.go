// Package vector holds the on-disk envelope of the approximate
// nearest-neighbor sub-engine. Search and graph construction live in the
// host's ANN collaborator; this package only reads and writes the file
// envelope so the container surface is complete: version validation,
// index parameters, and the opaque index blob's framing.
//
// The vector file versions its format independently of the columnar
// container: the accepted range here is [2, 3] while the columnar file
// accepts [10, 12], and the two must not be unified without a migration
// plan for existing files.
package vector

import (
	"fmt"
	"os"

	"github.com/colstore/secondary/codec"
	"github.com/colstore/secondary/endian"
	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// Storage version bounds for the vector envelope.
const (
	CurrentVersion     uint32 = 3
	MinReadableVersion uint32 = 2
)

// Similarity names the distance the index was built for.
type Similarity uint8

const (
	SimilarityL2 Similarity = iota + 1
	SimilarityIP
	SimilarityCosine
)

// Quantization names the stored vector element encoding.
type Quantization uint8

const (
	QuantNone Quantization = iota + 1
	QuantInt8
)

// Envelope is the parsed vector-file header plus the framed index blob.
type Envelope struct {
	AttrName     string
	AttrType     format.AttrType
	Dims         uint32
	Similarity   Similarity
	Quantization Quantization

	// HNSW construction parameters, recorded for reproducibility.
	M              uint32
	EFConstruction uint32

	// IndexBlob is the opaque graph payload owned by the ANN collaborator.
	IndexBlob []byte
}

var engine = endian.GetLittleEndianEngine()

// Validate checks the schema constraints a build must satisfy: the
// indexed attribute must be a float vector, and every envelope must
// carry a non-zero dimension.
func (e *Envelope) Validate() error {
	if e.AttrType != format.AttrF32Vec {
		return fmt.Errorf("%w: attribute %q has type %s",
			errs.ErrANNRequiresFloatVector, e.AttrName, e.AttrType)
	}
	if e.Dims == 0 {
		return fmt.Errorf("%w: attribute %q has zero dimensions",
			errs.ErrVectorDimMismatch, e.AttrName)
	}

	return nil
}

// Marshal serializes the envelope at CurrentVersion.
func (e *Envelope) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	buf := engine.AppendUint32(nil, CurrentVersion)
	buf = codec.AppendVarint(buf, uint64(len(e.AttrName)))
	buf = append(buf, e.AttrName...)
	buf = engine.AppendUint32(buf, uint32(e.AttrType))
	buf = engine.AppendUint32(buf, e.Dims)
	buf = append(buf, byte(e.Similarity), byte(e.Quantization))
	buf = engine.AppendUint32(buf, e.M)
	buf = engine.AppendUint32(buf, e.EFConstruction)
	buf = engine.AppendUint64(buf, uint64(len(e.IndexBlob)))
	buf = append(buf, e.IndexBlob...)

	return buf, nil
}

// Unmarshal parses an envelope, rejecting versions outside
// [MinReadableVersion, CurrentVersion] with an error naming both.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) < 4 {
		return nil, errs.ErrTruncatedFile
	}
	version := engine.Uint32(data)
	if version < MinReadableVersion || version > CurrentVersion {
		return nil, fmt.Errorf("%w: vector file has version %d, supported range is [%d, %d]",
			errs.ErrUnsupportedVersion, version, MinReadableVersion, CurrentVersion)
	}
	pos := 4

	nameLen, sz, ok := codec.ReadVarint(data[pos:])
	if !ok || pos+sz+int(nameLen) > len(data) {
		return nil, errs.ErrTruncatedFile
	}
	pos += sz
	name := string(data[pos : pos+int(nameLen)])
	pos += int(nameLen)

	if pos+18 > len(data) {
		return nil, errs.ErrTruncatedFile
	}

	e := &Envelope{AttrName: name}
	e.AttrType = format.AttrType(engine.Uint32(data[pos:]))
	pos += 4
	e.Dims = engine.Uint32(data[pos:])
	pos += 4
	e.Similarity = Similarity(data[pos])
	e.Quantization = Quantization(data[pos+1])
	pos += 2
	e.M = engine.Uint32(data[pos:])
	pos += 4
	e.EFConstruction = engine.Uint32(data[pos:])
	pos += 4

	if pos+8 > len(data) {
		return nil, errs.ErrTruncatedFile
	}
	blobLen := engine.Uint64(data[pos:])
	pos += 8
	if pos+int(blobLen) > len(data) {
		return nil, errs.ErrTruncatedFile
	}
	e.IndexBlob = data[pos : pos+int(blobLen)]

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// WriteFile writes the envelope to filename, replacing any existing file.
func WriteFile(filename string, e *Envelope) error {
	data, err := e.Marshal()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0o644)
}

// ReadFile reads and validates an envelope file.
func ReadFile(filename string) (*Envelope, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", filename, err)
	}

	return Unmarshal(data)
}
