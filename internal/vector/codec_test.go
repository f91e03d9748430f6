package vector

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeBlob_RoundTrip(t *testing.T) {
	vecs := [][]float32{
		{},
		{0},
		{1, -1, 0.5},
		{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8},
		{math.MaxFloat32, math.SmallestNonzeroFloat32, -math.MaxFloat32},
	}
	for _, vec := range vecs {
		blob := EncodeBlob(vec)
		if len(blob) != len(vec)*4 {
			t.Errorf("blob length: got %d, want %d", len(blob), len(vec)*4)
		}
		got, err := DecodeBlob(blob)
		if err != nil {
			t.Fatalf("DecodeBlob: %v", err)
		}
		if len(got) != len(vec) {
			t.Fatalf("dimension: got %d, want %d", len(got), len(vec))
		}
		for i := range vec {
			if math.Float32bits(got[i]) != math.Float32bits(vec[i]) {
				t.Errorf("component %d: got %v, want %v (not bit-identical)", i, got[i], vec[i])
			}
		}
	}
}

func TestEncodeBlob_NaNInfPassThrough(t *testing.T) {
	vec := []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))}
	got, err := DecodeBlob(EncodeBlob(vec))
	if err != nil {
		t.Fatalf("DecodeBlob: %v", err)
	}
	if !math.IsNaN(float64(got[0])) {
		t.Errorf("component 0: got %v, want NaN", got[0])
	}
	if !math.IsInf(float64(got[1]), 1) || !math.IsInf(float64(got[2]), -1) {
		t.Errorf("infinities not preserved: got %v", got[1:])
	}
}

func TestDecodeBlob_Malformed(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7, 9} {
		_, err := DecodeBlob(make([]byte, n))
		if !errors.Is(err, ErrMalformedBlob) {
			t.Errorf("blob of %d bytes: got %v, want ErrMalformedBlob", n, err)
		}
	}
}

func TestDecodeBlob_DimensionInferred(t *testing.T) {
	got, err := DecodeBlob(make([]byte, 384*4))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 384 {
		t.Errorf("dimension: got %d, want 384", len(got))
	}
}
