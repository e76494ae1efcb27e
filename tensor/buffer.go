package tensor

import (
	"encoding/binary"
	"unsafe"
)

// Buffer is the polymorphic tensor storage union: an owned or borrowed
// F32/F16 slice, or a borrowed raw byte slice holding one of the
// block-quantized formats. Grounded directly in
// original_source/crabml-core/src/backends/cpu/buf/api.rs's
// CpuTensorBuf<'a> enum — owned vs borrowed is tracked per-buffer so a
// view into an mmap'd weight file can share storage with zero copies
// while an owned activation buffer can still be mutated in place.
type Buffer struct {
	dtype Dtype
	owned bool

	f32 []float32
	f16 []uint16
	raw []byte

	numElems int
}

// bytesToF32 reinterprets a little-endian byte slice as []float32
// without copying — the zero-copy path for mmap-backed weight buffers
// (see internal/loader).
func bytesToF32(b []byte) []float32 {
	if len(b)%4 != 0 {
		panic("tensor: byte length not a multiple of 4 for F32 reinterpret")
	}
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func bytesToF16(b []byte) []uint16 {
	if len(b)%2 != 0 {
		panic("tensor: byte length not a multiple of 2 for F16 reinterpret")
	}
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b[0])), len(b)/2)
}

// NewOwnedF32 wraps data as an owned F32 buffer (no copy; caller hands
// over ownership).
func NewOwnedF32(data []float32) *Buffer {
	return &Buffer{dtype: F32, owned: true, f32: data, numElems: len(data)}
}

// NewOwnedF16 wraps data as an owned F16 buffer.
func NewOwnedF16(data []uint16) *Buffer {
	return &Buffer{dtype: F16, owned: true, f16: data, numElems: len(data)}
}

// FromRawBytes builds a borrowed buffer over data, interpreted per
// dtype. F32/F16 are reinterpreted without copying; quantized dtypes
// keep the raw block bytes and compute the logical element count from
// the format's block geometry. data's length must divide evenly by
// the dtype's on-disk unit.
func FromRawBytes(data []byte, dtype Dtype) (*Buffer, error) {
	switch dtype {
	case F32:
		if len(data)%4 != 0 {
			return nil, newAlignmentError("F32 raw byte length %d not a multiple of 4", len(data))
		}
		return &Buffer{dtype: F32, owned: false, f32: bytesToF32(data), numElems: len(data) / 4}, nil
	case F16:
		if len(data)%2 != 0 {
			return nil, newAlignmentError("F16 raw byte length %d not a multiple of 2", len(data))
		}
		return &Buffer{dtype: F16, owned: false, f16: bytesToF16(data), numElems: len(data) / 2}, nil
	default:
		bb, be := dtype.blockBytes(), dtype.blockElems()
		if bb == 0 {
			return nil, newDtypeError("unsupported raw-bytes dtype %s", dtype)
		}
		if len(data)%bb != 0 {
			return nil, newAlignmentError("%s raw byte length %d not a multiple of block size %d", dtype, len(data), bb)
		}
		nblocks := len(data) / bb
		return &Buffer{dtype: dtype, owned: false, raw: data, numElems: nblocks * be}, nil
	}
}

func (b *Buffer) Dtype() Dtype   { return b.dtype }
func (b *Buffer) Len() int       { return b.numElems }
func (b *Buffer) IsOwned() bool  { return b.owned }

// IsQuantized mirrors Dtype.IsQuantized — kept as a method because
// original_source's is_quantized is a buffer-level predicate the rest
// of the codebase calls through the buffer, not the dtype directly.
// Unlike the original, this is NOT inverted: spec.md §9 flags the
// original's `matches!(self, CpuTensorBuf::F32(_))` as a bug (true
// only for F32, backwards) that must not be reproduced.
func (b *Buffer) IsQuantized() bool { return b.dtype.IsQuantized() }

func (b *Buffer) VecDotRHSDtype() Dtype { return b.dtype.VecDotRHSDtype() }

// RawBytes returns the block-quantized buffer's on-disk bytes, exactly
// as FromRawBytes would need to reconstruct it — the write-side
// counterpart to FromRawBytes, used to persist a freshly quantized
// buffer (e.g. Buffer.Quantize's output) to a weight file that can
// later be mmap'd back in. Panics on F32/F16 buffers, which have no
// block-bytes representation.
func (b *Buffer) RawBytes() []byte {
	if b.raw == nil {
		panic("tensor: RawBytes called on a " + b.dtype.String() + " buffer")
	}
	return b.raw
}

// AsF32 returns the buffer's values reinterpreted/shared as []float32.
// Panics if the buffer isn't F32 — callers must Dequantize first.
func (b *Buffer) AsF32() []float32 {
	if b.dtype != F32 {
		panic("tensor: AsF32 called on a " + b.dtype.String() + " buffer")
	}
	return b.f32
}

// AsF32Mut is AsF32 but additionally panics on a borrowed (non-owned)
// buffer — mutating shared/mmap'd storage is a programmer error, not a
// recoverable condition.
func (b *Buffer) AsF32Mut() []float32 {
	if b.dtype != F32 {
		panic("tensor: AsF32Mut called on a " + b.dtype.String() + " buffer")
	}
	if !b.owned {
		panic("tensor: AsF32Mut called on a non-owned buffer")
	}
	return b.f32
}

// Dequantize produces a new buffer holding this buffer's values
// converted to target, which must be F32 or F16 (api.rs's dequantize
// only ever targets full/half precision).
func (b *Buffer) Dequantize(target Dtype) (*Buffer, error) {
	if target != F32 && target != F16 {
		return nil, newDtypeError("dequantize target must be F32 or F16, got %s", target)
	}
	f32 := make([]float32, b.numElems)
	switch b.dtype {
	case F32:
		copy(f32, b.f32)
	case F16:
		for i, h := range b.f16 {
			f32[i] = half2float(h)
		}
	case Q8_0:
		it := newQ80Iter(b.raw, 0, b.numElems)
		for i := range f32 {
			v, _ := it.Next()
			f32[i] = v
		}
	case Q8_1:
		it := newQ81Iter(b.raw, 0, b.numElems)
		for i := range f32 {
			v, _ := it.Next()
			f32[i] = v
		}
	case Q4_0:
		it := newQ40Iter(b.raw, 0, b.numElems)
		for i := range f32 {
			v, _ := it.Next()
			f32[i] = v
		}
	case Q4_1:
		it := newQ41Iter(b.raw, 0, b.numElems)
		for i := range f32 {
			v, _ := it.Next()
			f32[i] = v
		}
	case Q5_0, Q5_1, Q6K:
		dequantizeBlocked(b.raw, b.dtype, 0, b.numElems, f32)
	default:
		return nil, newDtypeError("unsupported source dtype %s for dequantize", b.dtype)
	}

	if target == F32 {
		return NewOwnedF32(f32), nil
	}
	f16 := make([]uint16, len(f32))
	for i, v := range f32 {
		f16[i] = float2half(v)
	}
	return NewOwnedF16(f16), nil
}

// Quantize produces a new owned buffer by block-quantizing this
// buffer's F32 values into target. The source must be F32 and its
// length a multiple of target's block size.
func (b *Buffer) Quantize(target Dtype) (*Buffer, error) {
	if b.dtype != F32 {
		return nil, newDtypeError("quantize source must be F32, got %s", b.dtype)
	}
	be := target.blockElems()
	if be == 0 {
		return nil, newDtypeError("unsupported quantize target %s", target)
	}
	if b.numElems%be != 0 {
		return nil, newShapeError("length %d not a multiple of block size %d for %s", b.numElems, be, target)
	}
	var raw []byte
	switch target {
	case Q8_0:
		raw = quantizeQ8_0(b.f32)
	case Q8_1:
		raw = quantizeQ8_1(b.f32)
	case Q4_0:
		raw = quantizeQ4_0(b.f32)
	case Q4_1:
		raw = quantizeQ4_1(b.f32)
	default:
		return nil, newDtypeError("quantize target %s has no writer (read-only dtype)", target)
	}
	return &Buffer{dtype: target, owned: true, raw: raw, numElems: b.numElems}, nil
}

// VecDot dots length elements of this buffer starting at aOffset
// against b starting at bOffset. The two dtypes must already form a
// valid companion pair (see Dtype.VecDotRHSDtype) — callers quantize
// the RHS beforehand; passing an unsupported pair panics, matching
// api.rs's vec_dot unreachable!() arms.
func (b *Buffer) VecDot(aOffset int, rhs *Buffer, bOffset, length int) float32 {
	if b.dtype == F32 && rhs.dtype == F32 {
		return vecDotF32F32(b.f32, aOffset, rhs.f32, bOffset, length)
	}
	if b.dtype == F16 && rhs.dtype == F16 {
		return vecDotF16F16(b.f16, aOffset, rhs.f16, bOffset, length)
	}
	if b.raw == nil || rhs.raw == nil {
		panic("tensor: unsupported vec_dot dtype pair " + b.dtype.String() + "/" + rhs.dtype.String())
	}
	return vecDotDispatch(b.dtype, b.raw, aOffset, rhs.dtype, rhs.raw, bOffset, length)
}

// Extend appends vals to an owned F32 buffer. Calling Extend on a
// non-owned (borrowed/mmap) buffer is a programmer error, per api.rs's
// extend panicking on non-owned storage.
func (b *Buffer) Extend(vals []float32) {
	if !b.owned {
		panic("tensor: Extend called on a non-owned buffer")
	}
	if b.dtype != F32 {
		panic("tensor: Extend called on a " + b.dtype.String() + " buffer")
	}
	b.f32 = append(b.f32, vals...)
	b.numElems = len(b.f32)
}

// CopyFrom copies length elements from src starting at srcOffset into
// this buffer starting at offset. The destination must be owned and
// F32 or F16; a Q8_0 source must start at a block-aligned offset
// (mirrors api.rs's copy_from assertions).
func (b *Buffer) CopyFrom(src *Buffer, offset int, srcOffset int, length int) error {
	if !b.owned {
		return newShapeError("CopyFrom destination must be owned")
	}
	if b.dtype != F32 && b.dtype != F16 {
		return newDtypeError("CopyFrom destination must be F32 or F16, got %s", b.dtype)
	}
	if src.dtype.IsQuantized() && srcOffset%src.dtype.blockElems() != 0 {
		return newAlignmentError("CopyFrom source offset %d not block-aligned for %s", srcOffset, src.dtype)
	}
	tmp := make([]float32, length)
	switch src.dtype {
	case F32:
		copy(tmp, src.f32[srcOffset:srcOffset+length])
	case F16:
		for i := 0; i < length; i++ {
			tmp[i] = half2float(src.f16[srcOffset+i])
		}
	case Q8_0:
		it := newQ80Iter(src.raw, srcOffset, length)
		for i := range tmp {
			v, _ := it.Next()
			tmp[i] = v
		}
	case Q8_1:
		it := newQ81Iter(src.raw, srcOffset, length)
		for i := range tmp {
			v, _ := it.Next()
			tmp[i] = v
		}
	case Q4_0:
		it := newQ40Iter(src.raw, srcOffset, length)
		for i := range tmp {
			v, _ := it.Next()
			tmp[i] = v
		}
	case Q4_1:
		it := newQ41Iter(src.raw, srcOffset, length)
		for i := range tmp {
			v, _ := it.Next()
			tmp[i] = v
		}
	case Q5_0, Q5_1, Q6K:
		dequantizeBlocked(src.raw, src.dtype, srcOffset, length, tmp)
	default:
		return newDtypeError("unsupported CopyFrom source dtype %s", src.dtype)
	}

	if b.dtype == F32 {
		copy(b.f32[offset:offset+length], tmp)
	} else {
		for i, v := range tmp {
			b.f16[offset+i] = float2half(v)
		}
	}
	return nil
}

// rawBlockAt returns the raw bytes of the block containing logical
// element idx, for callers that need direct block access (e.g.
// embedding-table row lookups) without going through an iterator.
func (b *Buffer) rawBlockAt(idx int) []byte {
	be := b.dtype.blockElems()
	bb := b.dtype.blockBytes()
	blockIdx := idx / be
	return b.raw[blockIdx*bb : (blockIdx+1)*bb]
}

func uint16At(raw []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(raw[off : off+2])
}
