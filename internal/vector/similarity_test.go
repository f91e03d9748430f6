package vector

import (
	"math"
	"testing"
)

func TestInnerProduct(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1, 2}, []float32{1, 2, 3}, 0}, // mismatched dimensions
		{nil, nil, 0},
	}
	for _, tt := range tests {
		if got := InnerProduct(tt.a, tt.b); got != tt.want {
			t.Errorf("InnerProduct(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestL2Norm(t *testing.T) {
	if got := L2Norm([]float32{3, 4}); got != 5 {
		t.Errorf("L2Norm = %v, want 5", got)
	}
	if got := L2Norm(nil); got != 0 {
		t.Errorf("L2Norm(nil) = %v, want 0", got)
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if got := L2Norm(v); math.Abs(got-1) > 1e-6 {
		t.Errorf("norm after normalize = %v, want 1", got)
	}

	zero := []float32{0, 0, 0}
	NormalizeL2(zero)
	for i, x := range zero {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %v", i, x)
		}
	}
}
