package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedBlob is returned by DecodeBlob when the blob length is not a
// multiple of 4 bytes and therefore cannot hold float32 values.
var ErrMalformedBlob = errors.New("malformed embedding blob")

// EncodeBlob packs a vector into a byte blob for storage: 4 bytes per
// dimension, little-endian IEEE-754 float32, in vector order. NaN and Inf
// values are passed through unchanged.
func EncodeBlob(vec []float32) []byte {
	const size = 4
	out := make([]byte, len(vec)*size)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

// DecodeBlob unpacks a blob produced by EncodeBlob. The dimension is inferred
// from the blob length. Returns ErrMalformedBlob if len(blob) is not a
// multiple of 4. Round-trips EncodeBlob bit-for-bit.
func DecodeBlob(blob []byte) ([]float32, error) {
	const size = 4
	if len(blob)%size != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedBlob, len(blob), size)
	}
	out := make([]float32, len(blob)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*size : (i+1)*size]))
	}
	return out, nil
}
