package tensor

// MultiQueryAttention computes, for one query position pos and every
// head h, the causally-masked attention output into out[h*headSize:].
//
//   - q has nHeads*headSize elements (the current position's query).
//   - kCache/vCache hold [0,pos] positions, one slice per position,
//     each of nKVHeads*headSize elements (kCache[t] is position t's
//     keys across all KV heads).
//   - Each query head h reads from KV head h/(nHeads/nKVHeads) — the
//     grouped/multi-query sharing ratio.
//
// Grounded in original_source/crabml-core/src/tensor/arithmetic.rs's
// tensor_multi_query_attention (the explicit per-head loop form,
// chosen over the alternative repeat+transpose+batch_matmul
// formulation tensor_multi_query_attention2 — see DESIGN.md).
func MultiQueryAttention(dev *Device, out, q []float32, kCache, vCache [][]float32, nHeads, nKVHeads, headSize int, pos int) error {
	if nHeads%nKVHeads != 0 {
		return newShapeError("MultiQueryAttention nHeads %d not a multiple of nKVHeads %d", nHeads, nKVHeads)
	}
	if len(q) != nHeads*headSize {
		return newShapeError("MultiQueryAttention query length %d, want %d", len(q), nHeads*headSize)
	}
	if len(out) != nHeads*headSize {
		return newShapeError("MultiQueryAttention output length %d, want %d", len(out), nHeads*headSize)
	}
	groupSize := nHeads / nKVHeads
	invSqrt := 1.0 / sqrtf(float32(headSize))

	dev.Parallelize(nHeads, func(hs, he int) {
		scores := make([]float32, pos+1)
		for h := hs; h < he; h++ {
			kvh := h / groupSize
			qh := q[h*headSize : (h+1)*headSize]

			for t := 0; t <= pos; t++ {
				kt := kCache[t][kvh*headSize : (kvh+1)*headSize]
				var dot float32
				for i := 0; i < headSize; i++ {
					dot += qh[i] * kt[i]
				}
				scores[t] = dot * invSqrt
			}
			if err := Softmax(dev, scores, pos+1); err != nil {
				panic(err)
			}

			acc := out[h*headSize : (h+1)*headSize]
			for i := range acc {
				acc[i] = 0
			}
			for t := 0; t <= pos; t++ {
				vt := vCache[t][kvh*headSize : (kvh+1)*headSize]
				w := scores[t]
				for i := 0; i < headSize; i++ {
					acc[i] += w * vt[i]
				}
			}
		}
	})
	return nil
}
