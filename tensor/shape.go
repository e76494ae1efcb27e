package tensor

// Strider is a logical shape/stride view over a flat buffer. It never
// owns storage — shape and strides are in element units, never bytes.
// Grounded in original_source/crabml-core/src/tensor/cpu/buf.rs and the
// iter_axis call sites in arithmetic.rs.
type Strider struct {
	shape   []int
	strides []int
}

// NewStrider builds a contiguous strider for shape (strides are the
// reverse cumulative product of the shape).
func NewStrider(shape []int) (*Strider, error) {
	for _, s := range shape {
		if s <= 0 {
			return nil, newShapeError("shape extents must be positive, got %v", shape)
		}
	}
	if len(shape) == 0 || len(shape) > 4 {
		return nil, newShapeError("rank must be in [1,4], got %d", len(shape))
	}
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return &Strider{shape: append([]int(nil), shape...), strides: strides}, nil
}

// NewStriderWithStrides builds a strider with caller-supplied strides
// (used to describe a non-contiguous view, e.g. batched matmul's
// N-contiguous B pattern).
func NewStriderWithStrides(shape, strides []int) (*Strider, error) {
	if len(shape) != len(strides) {
		return nil, newShapeError("shape %v and strides %v length mismatch", shape, strides)
	}
	for _, s := range shape {
		if s <= 0 {
			return nil, newShapeError("shape extents must be positive, got %v", shape)
		}
	}
	return &Strider{shape: append([]int(nil), shape...), strides: append([]int(nil), strides...)}, nil
}

func (s *Strider) Rank() int       { return len(s.shape) }
func (s *Strider) Shape() []int    { return s.shape }
func (s *Strider) Strides() []int  { return s.strides }

// Len is the logical element count (product of the shape).
func (s *Strider) Len() int {
	n := 1
	for _, v := range s.shape {
		n *= v
	}
	return n
}

// IsContiguous reports whether strides equal the reverse cumulative
// product of the shape — a linear scan touches memory in order.
func (s *Strider) IsContiguous() bool {
	acc := 1
	for i := len(s.shape) - 1; i >= 0; i-- {
		if s.strides[i] != acc {
			return false
		}
		acc *= s.shape[i]
	}
	return true
}

// offset computes the flat element offset of origin.
func (s *Strider) offset(origin []int) int {
	off := 0
	for i, o := range origin {
		off += o * s.strides[i]
	}
	return off
}

// AxisIter walks axis starting at origin, advancing by that axis's
// stride, stopping at the extent. It never traverses ghost cells of
// other axes.
type AxisIter struct {
	buf    []float32
	pos    int
	stride int
	remain int
}

func (it *AxisIter) Next() (float32, bool) {
	if it.remain <= 0 {
		return 0, false
	}
	v := it.buf[it.pos]
	it.pos += it.stride
	it.remain--
	return v, true
}

// Collect drains the iterator into a new slice (convenience for
// tests/properties; primitives should prefer Next in a loop to avoid
// the allocation).
func (it *AxisIter) Collect() []float32 {
	out := make([]float32, 0, it.remain)
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// IterAxis returns a lazy sequence over buf along axis, starting at
// origin.
func (s *Strider) IterAxis(buf []float32, origin []int, axis int) *AxisIter {
	return &AxisIter{
		buf:    buf,
		pos:    s.offset(origin),
		stride: s.strides[axis],
		remain: s.shape[axis] - origin[axis],
	}
}

// AxisIterMut is IterAxis's mutable counterpart, yielding pointers
// into buf so callers can write in place.
type AxisIterMut struct {
	buf    []float32
	pos    int
	stride int
	remain int
}

func (it *AxisIterMut) Next() (*float32, bool) {
	if it.remain <= 0 {
		return nil, false
	}
	p := &it.buf[it.pos]
	it.pos += it.stride
	it.remain--
	return p, true
}

func (s *Strider) IterAxisMut(buf []float32, origin []int, axis int) *AxisIterMut {
	return &AxisIterMut{
		buf:    buf,
		pos:    s.offset(origin),
		stride: s.strides[axis],
		remain: s.shape[axis] - origin[axis],
	}
}

// ParIterAxisMut splits the axis range from origin to the extent into
// chunks on the device's worker pool and calls fn(idx, ptr) once per
// element, idx counting from origin — the parallel variant of
// IterAxisMut used by RMSNorm/RMSNormInto's second pass.
func (s *Strider) ParIterAxisMut(dev *Device, buf []float32, origin []int, axis int, fn func(idx int, v *float32)) {
	extent := s.shape[axis] - origin[axis]
	base := s.offset(origin)
	stride := s.strides[axis]
	dev.Parallelize(extent, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i, &buf[base+i*stride])
		}
	})
}
