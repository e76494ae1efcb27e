package tensor

// vecDotF32F32 reduces a[aOff:aOff+length] . b[bOff:bOff+length] in
// groups of 8, left to right, matching the block-then-cross-block
// summation order the quantized kernels use so mixed-precision
// comparisons stay bit-reproducible across runs (spec.md §5).
func vecDotF32F32(a []float32, aOff int, b []float32, bOff int, length int) float32 {
	var sum float32
	g := 0
	for ; g+8 <= length; g += 8 {
		var group float32
		for l := 0; l < 8; l++ {
			group += a[aOff+g+l] * b[bOff+g+l]
		}
		sum += group
	}
	for ; g < length; g++ {
		sum += a[aOff+g] * b[bOff+g]
	}
	return sum
}

// vecDotF16F16 dequantizes both operands element-by-element into the
// same 8-lane grouping as vecDotF32F32, keeping summation order fixed
// regardless of storage dtype.
func vecDotF16F16(a []uint16, aOff int, b []uint16, bOff int, length int) float32 {
	var sum float32
	g := 0
	for ; g+8 <= length; g += 8 {
		var group float32
		for l := 0; l < 8; l++ {
			group += half2float(a[aOff+g+l]) * half2float(b[bOff+g+l])
		}
		sum += group
	}
	for ; g < length; g++ {
		sum += half2float(a[aOff+g]) * half2float(b[bOff+g])
	}
	return sum
}

// vecDotDispatch routes a (lhsDtype, rhsDtype) pair to its kernel. Any
// pair outside the companion-dtype table is a programmer error: the
// caller should have quantized rhs via VecDotRHSDtype first.
func vecDotDispatch(lhsDtype Dtype, lhs []byte, lhsOff int, rhsDtype Dtype, rhs []byte, rhsOff int, length int) float32 {
	switch {
	case lhsDtype == F32 && rhsDtype == F32:
		return vecDotF32F32(bytesToF32(lhs), lhsOff, bytesToF32(rhs), rhsOff, length)
	case lhsDtype == Q8_0 && rhsDtype == Q8_0:
		return vecDotQ8_0Q8_0(lhs, lhsOff, rhs, rhsOff, length)
	case lhsDtype == Q8_1 && rhsDtype == Q8_1:
		return vecDotQ8_1Q8_1(lhs, lhsOff, rhs, rhsOff, length)
	case lhsDtype == Q4_0 && rhsDtype == Q8_0:
		return vecDotQ4_0Q8_0(lhs, lhsOff, rhs, rhsOff, length)
	case lhsDtype == Q4_1 && rhsDtype == Q8_1:
		return vecDotQ4_1Q8_1(lhs, lhsOff, rhs, rhsOff, length)
	default:
		panic("tensor: unsupported vec_dot dtype pair " + lhsDtype.String() + "/" + rhsDtype.String())
	}
}
