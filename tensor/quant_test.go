package tensor

import (
	"math"
	"testing"
)

// S1: a 32-element Q8_0 block round-trips within one scale step d.
func TestQ8_0BlockRoundTrip(t *testing.T) {
	chunk := make([]float32, 32)
	for i := range chunk {
		chunk[i] = 1.0
	}
	chunk[0] = 2.0
	chunk[1] = 3.0
	chunk[2] = 4.0
	chunk[31] = 7.0

	raw := quantizeQ8_0(chunk)
	d := half2float(uint16At(raw, 0))
	wantD := float32(7.0 / 127.0)
	if math.Abs(float64(d-wantD)) > 1e-3 {
		t.Fatalf("scale d = %v, want ~%v", d, wantD)
	}

	got := make([]float32, 32)
	dequantizeQ8_0Block(raw, got)
	for i, v := range got {
		if math.Abs(float64(v-chunk[i])) > float64(d) {
			t.Fatalf("element %d: got %v want %v within %v", i, v, chunk[i], d)
		}
	}
}

// S2: iterate a two-block Q8_0 buffer, full range and from an offset.
func TestQ8_0BufferIteration(t *testing.T) {
	raw := make([]byte, 2*q80BlockBytes)
	putBlock := func(blockIdx int, d float32, qs [32]int8) {
		off := blockIdx * q80BlockBytes
		putHalf(raw, off, d)
		for i, q := range qs {
			raw[off+2+i] = byte(q)
		}
	}

	var qs0 [32]int8
	qs0[0], qs0[1], qs0[2], qs0[3] = 2, 3, 4, 1
	for i := 4; i < 31; i++ {
		qs0[i] = 1
	}
	qs0[31] = 7
	putBlock(0, 3.0, qs0)

	var qs1 [32]int8
	for i := 0; i < 30; i++ {
		qs1[i] = 1
	}
	qs1[30], qs1[31] = 9, 9
	putBlock(1, 3.0, qs1)

	it := newQ80Iter(raw, 0, 64)
	var full []float32
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		full = append(full, v)
	}
	if len(full) != 64 {
		t.Fatalf("full iteration length = %d, want 64", len(full))
	}
	if full[0] != 6 || full[1] != 9 || full[2] != 12 || full[3] != 3 {
		t.Fatalf("unexpected prefix: %v", full[:4])
	}
	if full[61] != 3 || full[62] != 27 || full[63] != 27 {
		t.Fatalf("unexpected suffix: %v", full[60:])
	}

	it2 := newQ80Iter(raw, 10, 54)
	count := 0
	for {
		_, ok := it2.Next()
		if !ok {
			break
		}
		count++
	}
	if count != 54 {
		t.Fatalf("offset iteration length = %d, want 54", count)
	}
}

func TestQ4_0BlockRoundTrip(t *testing.T) {
	chunk := make([]float32, 32)
	for i := range chunk {
		chunk[i] = float32(i%8) - 4
	}
	raw := quantizeQ4_0(chunk)
	got := make([]float32, 32)
	dequantizeQ4_0Block(raw, got)
	// Q4_0's scale is amax/-8, so d is negative; the error bound is |d|.
	d := float32(math.Abs(float64(half2float(uint16At(raw, 0)))))
	for i, v := range got {
		if math.Abs(float64(v-chunk[i])) > float64(d)+1e-6 {
			t.Fatalf("element %d: got %v want %v within %v", i, v, chunk[i], d)
		}
	}
}

func TestQ4_1BlockRoundTrip(t *testing.T) {
	chunk := make([]float32, 32)
	for i := range chunk {
		chunk[i] = float32(i) * 0.1
	}
	raw := quantizeQ4_1(chunk)
	got := make([]float32, 32)
	dequantizeQ4_1Block(raw, got)
	d := half2float(uint16At(raw, 0))
	for i, v := range got {
		if math.Abs(float64(v-chunk[i])) > float64(d)+1e-6 {
			t.Fatalf("element %d: got %v want %v within %v", i, v, chunk[i], d)
		}
	}
}

func TestVecDotQ4_0Q8_0MatchesF32(t *testing.T) {
	w := make([]float32, 64)
	x := make([]float32, 64)
	for i := range w {
		w[i] = float32(i%9) - 4
		x[i] = float32((i*3)%7) - 3
	}
	wq := quantizeQ4_0(w)
	xq := quantizeQ8_0(x)

	got := vecDotQ4_0Q8_0(wq, 0, xq, 0, 64)

	var want float32
	wDeq := make([]float32, 64)
	dequantizeQ4_0Block(wq[:q40BlockBytes], wDeq[:32])
	dequantizeQ4_0Block(wq[q40BlockBytes:], wDeq[32:])
	for i := range wDeq {
		want += wDeq[i] * x[i]
	}
	if math.Abs(float64(got-want)) > 2.0 {
		t.Fatalf("vecDotQ4_0Q8_0 = %v, want close to %v", got, want)
	}
}

func putHalf(raw []byte, off int, v float32) {
	h := float2half(v)
	raw[off] = byte(h)
	raw[off+1] = byte(h >> 8)
}
