package tensor

// RoPEInplace rotates consecutive (v0, v1) pairs within each head of q
// (and k, when present) at sequence position pos, per head_size and
// freqBase/freqScale. Grounded in
// original_source/crabml-core/src/tensor/arithmetic.rs's
// tensor_rope_inplace: for each pair index i within a head,
// freq = freqBase / freqScale^(headDim/headSize), then
//
//	v0' = v0*cos(pos*freq) - v1*sin(pos*freq)
//	v1' = v0*sin(pos*freq) + v1*cos(pos*freq)
func RoPEInplace(q, k []float32, pos int, headSize int, freqBase, freqScale float32) error {
	if headSize%2 != 0 {
		return newShapeError("RoPEInplace headSize must be even, got %d", headSize)
	}
	if err := rotate(q, pos, headSize, freqBase, freqScale); err != nil {
		return err
	}
	if k != nil {
		if err := rotate(k, pos, headSize, freqBase, freqScale); err != nil {
			return err
		}
	}
	return nil
}

// rotate walks buf head by head via a Strider's mutable axis iterator
// (shape [nHeads, headSize], axis 1) rather than hand-rolled base+i
// offsets, so the per-head pair rotation goes through the same
// descriptor the matmul/attention primitives are built against.
func rotate(buf []float32, pos int, headSize int, freqBase, freqScale float32) error {
	nHeads := len(buf) / headSize
	if nHeads == 0 {
		return nil
	}
	s, err := NewStrider([]int{nHeads, headSize})
	if err != nil {
		return err
	}
	for h := 0; h < nHeads; h++ {
		it := s.IterAxisMut(buf, []int{h, 0}, 1)
		for i := 0; i < headSize; i += 2 {
			p0, ok := it.Next()
			if !ok {
				break
			}
			p1, ok := it.Next()
			if !ok {
				break
			}
			headDim := float32(i)
			freq := freqBase / powf(freqScale, headDim/float32(headSize))
			theta := float32(pos) * freq
			cosT, sinT := cosf(theta), sinf(theta)
			v0, v1 := *p0, *p1
			*p0 = v0*cosT - v1*sinT
			*p1 = v0*sinT + v1*cosT
		}
	}
	return nil
}
