package loader

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lattice-run/tensorkernel/tensor"
)

func writeF32File(t *testing.T, vals []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.bin")
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenAndViewF32(t *testing.T) {
	vals := []float32{1, 2, 3, 4, 5, 6}
	path := writeF32File(t, vals)
	dev := tensor.NewDevice()

	entries := []TensorEntry{
		{Name: "w", Offset: 0, Length: int64(4 * len(vals)), Dtype: tensor.F32, Shape: []int{2, 3}},
	}
	lf, err := Open(path, entries, dev)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lf.Close()

	buf, entry, err := lf.View("w")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if buf.IsOwned() {
		t.Fatal("mmap-backed view should not be owned")
	}
	if entry.Shape[0] != 2 || entry.Shape[1] != 3 {
		t.Fatalf("entry shape = %v, want [2 3]", entry.Shape)
	}
	for i, v := range buf.AsF32() {
		if v != vals[i] {
			t.Fatalf("buf[%d] = %v, want %v", i, v, vals[i])
		}
	}
}

func TestViewUnknownTensor(t *testing.T) {
	path := writeF32File(t, []float32{1, 2, 3, 4})
	dev := tensor.NewDevice()
	lf, err := Open(path, []TensorEntry{{Name: "w", Offset: 0, Length: 16, Dtype: tensor.F32}}, dev)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lf.Close()

	if _, _, err := lf.View("missing"); err == nil {
		t.Fatal("expected error for unknown tensor name")
	}
}

func TestOpenRejectsOutOfBoundsEntry(t *testing.T) {
	path := writeF32File(t, []float32{1, 2, 3, 4})
	dev := tensor.NewDevice()

	entries := []TensorEntry{
		{Name: "w", Offset: 0, Length: 1024, Dtype: tensor.F32},
	}
	if _, err := Open(path, entries, dev); err == nil {
		t.Fatal("expected error for out-of-bounds entry")
	}
}

func TestOpenRejectsMisalignedQuantEntry(t *testing.T) {
	path := writeF32File(t, make([]float32, 64))
	dev := tensor.NewDevice()

	// 33 bytes is not a multiple of Q8_0's 34-byte block size.
	entries := []TensorEntry{
		{Name: "q", Offset: 0, Length: 33, Dtype: tensor.Q8_0},
	}
	if _, err := Open(path, entries, dev); err == nil {
		t.Fatal("expected alignment error for misaligned quantized entry")
	}
}
