package tensor

import (
	"math"
	"testing"
)

// S7: RoPE at pos=1, head_size=2, freq_base=10000, freq_scale=1,
// applied to q=[1,0].
func TestRoPEScenario(t *testing.T) {
	q := []float32{1, 0}
	if err := RoPEInplace(q, nil, 1, 2, 10000, 1); err != nil {
		t.Fatalf("RoPEInplace: %v", err)
	}
	wantX := float32(math.Cos(10000))
	wantY := float32(math.Sin(10000))
	if math.Abs(float64(q[0]-wantX)) > 1e-5 {
		t.Fatalf("q[0] = %v, want %v", q[0], wantX)
	}
	if math.Abs(float64(q[1]-wantY)) > 1e-5 {
		t.Fatalf("q[1] = %v, want %v", q[1], wantY)
	}
}

func TestRoPEPreservesNorm(t *testing.T) {
	q := []float32{3, 4, 1, 2}
	origNorm := q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
	if err := RoPEInplace(q, nil, 5, 2, 10000, 1); err != nil {
		t.Fatalf("RoPEInplace: %v", err)
	}
	newNorm := q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
	if math.Abs(float64(origNorm-newNorm)) > 1e-3 {
		t.Fatalf("norm changed: %v -> %v", origNorm, newNorm)
	}
}

func TestRoPEOddHeadSizeRejected(t *testing.T) {
	q := []float32{1, 2, 3}
	if err := RoPEInplace(q, nil, 0, 3, 10000, 1); err == nil {
		t.Fatal("expected shape error for odd head size")
	}
}
