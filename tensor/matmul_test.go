package tensor

import (
	"math"
	"testing"
)

// S3: 2-D matmul against a vector.
func TestMatMul2DVector(t *testing.T) {
	dev := NewDevice()
	w := NewOwnedF32([]float32{1, 2, 3, 4, 5, 6})
	x := NewOwnedF32([]float32{1, 2, 3})
	y := NewOwnedF32(make([]float32, 2))

	if err := MatMul2D(dev, w, []int{2, 3}, x, []int{3}, y); err != nil {
		t.Fatalf("MatMul2D: %v", err)
	}
	want := []float32{14, 32}
	for i, v := range y.AsF32() {
		if v != want[i] {
			t.Fatalf("y[%d] = %v, want %v", i, v, want[i])
		}
	}
}

// S4: 2-D matmul against a matrix. x is stored column-major (each
// batch column contiguous) so Buffer.VecDot can run over a stride-1
// run — see matmul.go's doc comment on layout.
func TestMatMul2DMatrix(t *testing.T) {
	dev := NewDevice()
	w := NewOwnedF32([]float32{1, 2, 3, 4, 5, 6})
	// columns: [1,5,9] [2,6,10] [3,7,11] [4,8,12]
	x := NewOwnedF32([]float32{1, 5, 9, 2, 6, 10, 3, 7, 11, 4, 8, 12})
	y := NewOwnedF32(make([]float32, 2*4))

	if err := MatMul2D(dev, w, []int{2, 3}, x, []int{3, 4}, y); err != nil {
		t.Fatalf("MatMul2D: %v", err)
	}
	want := []float32{38, 44, 50, 56, 83, 98, 113, 128}
	for i, v := range y.AsF32() {
		if math.Abs(float64(v-want[i])) > 1e-4 {
			t.Fatalf("y[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestMatMul2DShapeMismatch(t *testing.T) {
	dev := NewDevice()
	w := NewOwnedF32([]float32{1, 2, 3, 4, 5, 6})
	x := NewOwnedF32([]float32{1, 2})
	y := NewOwnedF32(make([]float32, 2))

	err := MatMul2D(dev, w, []int{2, 3}, x, []int{2}, y)
	if err == nil {
		t.Fatal("expected shape error, got nil")
	}
	terr, ok := err.(*Error)
	if !ok || terr.Kind != TensorShape {
		t.Fatalf("expected TensorShape error, got %v", err)
	}
}
