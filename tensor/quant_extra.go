package tensor

import "encoding/binary"

// Read-only dequantize-only support for Q5_0, Q5_1 and Q6_K, per
// SPEC_FULL.md's supplemental dtype set. These never get vec-dot
// kernels or matmul specializations — only Buffer.Dequantize and
// Buffer.CopyFrom reach them. Grounded in the gguf dequant reference's dequantQ5_0/
// dequantQ5_1/dequantQ2_K, generalized to Q6_K using the teacher's
// DequantQ6_K block shape (quant.go).

const (
	q50BlockBytes = 22 // f16 d + 4-byte qh + 16 bytes qs
	q50BlockElems = 32

	q51BlockBytes = 24 // f16 d + f16 m + 4-byte qh + 16 bytes qs
	q51BlockElems = 32

	q6kBlockBytes = 210 // 128 ql + 64 qh + 16 scales(i8) + f16 d
	q6kBlockElems = 256
)

func dequantizeQ5_0Block(block []byte, out []float32) {
	d := half2float(binary.LittleEndian.Uint16(block[0:2]))
	qh := binary.LittleEndian.Uint32(block[2:6])
	qs := block[6:22]
	for j := 0; j < 16; j++ {
		b := qs[j]
		hi0 := int32((qh >> uint(j)) & 1)
		hi1 := int32((qh >> uint(j+16)) & 1)
		v0 := (int32(b&0x0F) | (hi0 << 4)) - 16
		v1 := (int32(b>>4) | (hi1 << 4)) - 16
		out[j] = float32(v0) * d
		out[j+16] = float32(v1) * d
	}
}

func dequantizeQ5_1Block(block []byte, out []float32) {
	d := half2float(binary.LittleEndian.Uint16(block[0:2]))
	m := half2float(binary.LittleEndian.Uint16(block[2:4]))
	qh := binary.LittleEndian.Uint32(block[4:8])
	qs := block[8:24]
	for j := 0; j < 16; j++ {
		b := qs[j]
		hi0 := int32((qh >> uint(j)) & 1)
		hi1 := int32((qh >> uint(j+16)) & 1)
		v0 := int32(b&0x0F) | (hi0 << 4)
		v1 := int32(b>>4) | (hi1 << 4)
		out[j] = float32(v0)*d + m
		out[j+16] = float32(v1)*d + m
	}
}

// dequantizeQ6_KBlock follows the teacher's DequantQ6_K layout: 128
// bytes of low 4-bit quants, 64 bytes of high 2-bit quants, 16 signed
// per-group scale bytes, then an f16 overall scale. Each of the 16
// groups of 16 values shares one scale byte.
func dequantizeQ6_KBlock(block []byte, out []float32) {
	ql := block[0:128]
	qh := block[128:192]
	scales := block[192:208]
	d := half2float(binary.LittleEndian.Uint16(block[208:210]))

	for half := 0; half < 2; half++ {
		qlh := ql[half*64 : half*64+64]
		qhh := qh[half*32 : half*32+32]
		outBase := half * 128
		for l := 0; l < 32; l++ {
			is := l / 16
			q1 := (int32(qlh[l]&0x0F) | ((int32(qhh[l]>>0) & 3) << 4)) - 32
			q2 := (int32(qlh[l+32]&0x0F) | ((int32(qhh[l]>>2) & 3) << 4)) - 32
			q3 := (int32(qlh[l]>>4) | ((int32(qhh[l]>>4) & 3) << 4)) - 32
			q4 := (int32(qlh[l+32]>>4) | ((int32(qhh[l]>>6) & 3) << 4)) - 32

			s1 := float32(int8(scales[half*8+is]))
			s2 := float32(int8(scales[half*8+is+2]))
			s3 := float32(int8(scales[half*8+is+4]))
			s4 := float32(int8(scales[half*8+is+6]))

			out[outBase+l] = d * s1 * float32(q1)
			out[outBase+l+32] = d * s2 * float32(q2)
			out[outBase+l+64] = d * s3 * float32(q3)
			out[outBase+l+96] = d * s4 * float32(q4)
		}
	}
}

func dequantizeBlocked(raw []byte, dtype Dtype, startOffset, length int, out []float32) {
	be := dtype.blockElems()
	bb := dtype.blockBytes()
	var decode func(block []byte, out []float32)
	switch dtype {
	case Q5_0:
		decode = dequantizeQ5_0Block
	case Q5_1:
		decode = dequantizeQ5_1Block
	case Q6K:
		decode = dequantizeQ6_KBlock
	default:
		panic("tensor: dequantizeBlocked called with non-supplemental dtype")
	}
	if startOffset%be != 0 {
		panic("tensor: dequantize start offset must be block-aligned")
	}
	startBlock := startOffset / be
	nblocks := (length + be - 1) / be
	scratch := make([]float32, be)
	written := 0
	for b := 0; b < nblocks && written < length; b++ {
		off := (startBlock + b) * bb
		decode(raw[off:off+bb], scratch)
		n := be
		if written+n > length {
			n = length - written
		}
		copy(out[written:written+n], scratch[:n])
		written += n
	}
}
