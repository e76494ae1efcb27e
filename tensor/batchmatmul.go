package tensor

// This implementation covers the F32 weight/activation path. w and x
// must form a pair Buffer.VecDot accepts: there is no per-row
// dequantize of an F16 weight against an F32 x (that pair panics) and
// no F16-native accumulation kernel, and the N-contiguous path reads x
// through AsF32, so it needs an F32 x.
//
// BatchMatMul3D computes, for each batch index bi, y[bi] = w[bi%wBatch] . x[bi]
// where w has shape [wBatch, n, k] and x has shape [xBatch, k, m] (or
// [k, m] broadcast across all xBatch batches when x is rank 2).
// wBatch must divide xBatch — the broadcast rule grounded in
// original_source/crabml-core/src/backends/cpu/primitives/batch_matmul.rs's
// batch_matmul_naive_f32 (`bi % b_batch`).
//
// w must be contiguous. x may follow either of two layouts, matching
// the reference's two dispatch paths:
//   - K-contiguous: x's innermost (k) axis has stride 1 — VecDot runs
//     directly against each output column.
//   - N-contiguous: x's middle (m) axis has stride 1 instead — handled
//     by gathering a k-length scratch row per (batch, m column) before
//     dotting, since Buffer.VecDot needs a stride-1 run.
func BatchMatMul3D(dev *Device, w *Buffer, wShape []int, x *Buffer, xShape []int, xStrides []int, y *Buffer) error {
	if len(wShape) != 3 {
		return newShapeError("BatchMatMul3D weight must be rank 3, got shape %v", wShape)
	}
	wBatch, n, k := wShape[0], wShape[1], wShape[2]

	var xBatch, xK, xM, xBatchStride int
	switch len(xShape) {
	case 2:
		// One [k, m] x shared by every batch: batch stride 0.
		xBatch, xK, xM = wBatch, xShape[0], xShape[1]
	case 3:
		xBatch, xK, xM = xShape[0], xShape[1], xShape[2]
		xBatchStride = xK * xM
	default:
		return newShapeError("BatchMatMul3D rhs must be rank 2 or 3, got shape %v", xShape)
	}
	if xK != k {
		return newShapeError("BatchMatMul3D inner dim mismatch: weight %v vs rhs %v", wShape, xShape)
	}
	if xBatch%wBatch != 0 {
		return newShapeError("BatchMatMul3D batch %d not a multiple of weight batch %d", xBatch, wBatch)
	}
	if !wStriderContiguous(wShape) {
		return newShapeError("BatchMatMul3D weight must be contiguous")
	}

	kContiguous := len(xStrides) == 0 || xStrides[len(xStrides)-1] == 1
	out := y.AsF32Mut()
	if len(out) < xBatch*n*xM {
		return newShapeError("BatchMatMul3D output buffer too small: need %d got %d", xBatch*n*xM, len(out))
	}

	if kContiguous {
		dev.Parallelize(xBatch, func(bs, be int) {
			for bi := bs; bi < be; bi++ {
				wi := bi % wBatch
				for row := 0; row < n; row++ {
					wOff := (wi*n + row) * k
					for col := 0; col < xM; col++ {
						xOff := bi*xBatchStride + col*xK
						out[(bi*n+row)*xM+col] = w.VecDot(wOff, x, xOff, k)
					}
				}
			}
		})
		return nil
	}

	// N-contiguous: x's stride-1 axis is m, not k (x is physically
	// [batch, k, m] with m innermost, addressed as [batch, k, m]). Walk the k
	// axis of that view with a Strider rather than hand-rolled offset
	// arithmetic, gathering a k-length contiguous scratch row per
	// (batch, m) column before dotting — VecDot still needs a stride-1
	// run to hand to the block-quantized kernels.
	xView, err := NewStriderWithStrides([]int{xBatch, k, xM}, []int{xBatchStride, xM, 1})
	if err != nil {
		return err
	}
	xBuf := x.AsF32()
	dev.Parallelize(xBatch, func(bs, be int) {
		scratch := make([]float32, k)
		scratchBuf := NewOwnedF32(scratch)
		for bi := bs; bi < be; bi++ {
			wi := bi % wBatch
			for col := 0; col < xM; col++ {
				it := xView.IterAxis(xBuf, []int{bi, 0, col}, 1)
				for i := 0; i < k; i++ {
					v, _ := it.Next()
					scratch[i] = v
				}
				for row := 0; row < n; row++ {
					wOff := (wi*n + row) * k
					out[(bi*n+row)*xM+col] = w.VecDot(wOff, scratchBuf, 0, k)
				}
			}
		}
	})
	return nil
}

func wStriderContiguous(shape []int) bool {
	s, err := NewStrider(shape)
	if err != nil {
		return false
	}
	return s.IsContiguous()
}
