package tensor

// MatMul2D computes y = w . x for a dense 2-D weight w (shape
// [nOut, nIn]) against either a 1-D vector x (shape [nIn]) or a 2-D
// matrix x (shape [nIn, batch]), writing into y. Grounded in
// original_source/crabml-core/src/tensor/arithmetic.rs's
// tensor_matmul_2d/tensor_matmul_specialized_2d_1d, which this
// dispatches between based on x's rank.
//
// A 2-D x is read column by column: column c is the nIn contiguous
// elements starting at c*nIn (column-major storage of [nIn, batch]),
// so Buffer.VecDot gets a stride-1 run. y is written row-major as
// [nOut, batch].
//
// w's RHS companion dtype (w.Dtype().VecDotRHSDtype()) must already
// match x's dtype — callers quantize x beforehand; a mismatch panics
// deep in Buffer.VecDot rather than returning an error, since it is a
// caller-side programming mistake, not a runtime input condition.
func MatMul2D(dev *Device, w *Buffer, wShape []int, x *Buffer, xShape []int, y *Buffer) error {
	if len(wShape) != 2 {
		return newShapeError("MatMul2D weight must be rank 2, got shape %v", wShape)
	}
	nOut, nIn := wShape[0], wShape[1]

	switch len(xShape) {
	case 1:
		if xShape[0] != nIn {
			return newShapeError("MatMul2D shape mismatch: weight %v vs vector %v", wShape, xShape)
		}
		out := y.AsF32Mut()
		if len(out) < nOut {
			return newShapeError("MatMul2D output buffer too small: need %d got %d", nOut, len(out))
		}
		dev.Parallelize(nOut, func(start, end int) {
			for row := start; row < end; row++ {
				out[row] = w.VecDot(row*nIn, x, 0, nIn)
			}
		})
		return nil
	case 2:
		if xShape[0] != nIn {
			return newShapeError("MatMul2D shape mismatch: weight %v vs matrix %v", wShape, xShape)
		}
		batch := xShape[1]
		out := y.AsF32Mut()
		if len(out) < nOut*batch {
			return newShapeError("MatMul2D output buffer too small: need %d got %d", nOut*batch, len(out))
		}
		dev.Parallelize(nOut, func(start, end int) {
			for row := start; row < end; row++ {
				for col := 0; col < batch; col++ {
					out[row*batch+col] = w.VecDot(row*nIn, x, col*nIn, nIn)
				}
			}
		})
		return nil
	default:
		return newShapeError("MatMul2D rhs must be rank 1 or 2, got shape %v", xShape)
	}
}
