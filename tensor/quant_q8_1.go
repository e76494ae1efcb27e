package tensor

import "encoding/binary"

// Q8_1 block layout (36 bytes, 32 elements): f16 scale d, f16
// sum-of-quants s, then 32 i8 quants.
//
// The wire layout carries only (d, s, qs) — no separate min field — so
// dequantization must be exactly x = q*d (spec.md §4.1's Dequantize
// table), which only round-trips cleanly for a symmetric per-block
// scale. This implementation therefore derives d the same way Q8_0
// does (amax/127, signed quants) rather than the literal
// (max-min)/255 reading of the Quantize paragraph, which would need a
// min field the 36-byte layout doesn't have room for. s is then the
// sum of the signed integer quants, scaled by d to approximate the
// sum of the block's dequantized activations — exactly the quantity
// the Q4_1×Q8_1 dot kernel needs to fold in Q4_1's min term (m*s_q8,
// spec.md §4.1's kernel table). See DESIGN.md's Open Questions.
const (
	q81BlockBytes = 36
	q81BlockElems = 32
)

func quantizeQ8_1(data []float32) []byte {
	nblocks := len(data) / q81BlockElems
	out := make([]byte, nblocks*q81BlockBytes)
	for b := 0; b < nblocks; b++ {
		chunk := data[b*q81BlockElems : (b+1)*q81BlockElems]
		var amax float32
		for _, v := range chunk {
			a := v
			if a < 0 {
				a = -a
			}
			if a > amax {
				amax = a
			}
		}
		d := amax / 127.0
		off := b * q81BlockBytes
		binary.LittleEndian.PutUint16(out[off:off+2], float2half(d))

		var qsum int32
		if d != 0 {
			inv := 1.0 / d
			for i, v := range chunk {
				q := roundToInt(v * inv)
				out[off+4+i] = byte(int8(q))
				qsum += q
			}
		}
		// s = d * sum(q) approximates sum(x) over the block.
		binary.LittleEndian.PutUint16(out[off+2:off+4], float2half(d*float32(qsum)))
	}
	return out
}

func dequantizeQ8_1Block(block []byte, out []float32) {
	d := half2float(binary.LittleEndian.Uint16(block[0:2]))
	for j := 0; j < q81BlockElems; j++ {
		out[j] = float32(int8(block[4+j])) * d
	}
}

type q81Iter struct {
	raw      []byte
	pos, end int
	cur      [q81BlockElems]float32
	curBlock int
}

func newQ81Iter(raw []byte, startOffset, length int) *q81Iter {
	return &q81Iter{raw: raw, pos: startOffset, end: startOffset + length, curBlock: -1}
}

func (it *q81Iter) Next() (float32, bool) {
	if it.pos >= it.end {
		return 0, false
	}
	blockIdx := it.pos / q81BlockElems
	if blockIdx != it.curBlock {
		off := blockIdx * q81BlockBytes
		dequantizeQ8_1Block(it.raw[off:off+q81BlockBytes], it.cur[:])
		it.curBlock = blockIdx
	}
	v := it.cur[it.pos%q81BlockElems]
	it.pos++
	return v, true
}

// vecDotQ8_1Q8_1 dots two Q8_1 rows, additionally subtracting the
// s_a*s_b terms the asymmetric form requires (spec.md §4.1).
func vecDotQ8_1Q8_1(a []byte, aOff int, b []byte, bOff int, length int) float32 {
	if aOff%q81BlockElems != 0 || bOff%q81BlockElems != 0 || length%q81BlockElems != 0 {
		panic("tensor: Q8_1 vec_dot offsets/length must be block-aligned")
	}
	nblocks := length / q81BlockElems
	aBlockOff := (aOff / q81BlockElems) * q81BlockBytes
	bBlockOff := (bOff / q81BlockElems) * q81BlockBytes

	var sum float32
	for blk := 0; blk < nblocks; blk++ {
		ab := a[aBlockOff+blk*q81BlockBytes : aBlockOff+(blk+1)*q81BlockBytes]
		bb := b[bBlockOff+blk*q81BlockBytes : bBlockOff+(blk+1)*q81BlockBytes]
		da := half2float(binary.LittleEndian.Uint16(ab[0:2]))
		db := half2float(binary.LittleEndian.Uint16(bb[0:2]))
		sa := half2float(binary.LittleEndian.Uint16(ab[2:4]))
		sb := half2float(binary.LittleEndian.Uint16(bb[2:4]))

		var blockSum float32
		for g := 0; g < 4; g++ {
			base := 4 + g*8
			var group float32
			for l := 0; l < 8; l++ {
				group += float32(int8(ab[base+l])) * float32(int8(bb[base+l]))
			}
			blockSum += group
		}
		sum += blockSum*da*db - sa*sb
	}
	return sum
}
