package tensor

import "gorgonia.org/vecf32"

// RMSNorm normalizes x in place against weight w: x[i] = x[i] / rms *
// w[i], where rms = sqrt(mean(x^2) + eps). Two passes: the ss sum is
// sequential (reduction order must stay left-to-right per the
// reproducibility invariant), the scale-and-multiply pass is
// parallel. Grounded in
// original_source/crabml-core/src/tensor/arithmetic.rs's
// tensor_rms_norm_inplace.
func RMSNorm(dev *Device, x []float32, w []float32, eps float32) error {
	if len(x) != len(w) {
		return newShapeError("RMSNorm length mismatch: x=%d w=%d", len(x), len(w))
	}
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	rms := sqrtf(ss/float32(len(x)) + eps)
	inv := 1.0 / rms
	s, err := NewStrider([]int{len(x)})
	if err != nil {
		return err
	}
	s.ParIterAxisMut(dev, x, []int{0}, 0, func(idx int, v *float32) {
		*v = *v * inv * w[idx]
	})
	return nil
}

// RMSNormInto is RMSNorm but writes into a separate output slice,
// leaving x untouched.
func RMSNormInto(dev *Device, out, x, w []float32, eps float32) error {
	if len(x) != len(w) || len(out) != len(x) {
		return newShapeError("RMSNormInto length mismatch: out=%d x=%d w=%d", len(out), len(x), len(w))
	}
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	rms := sqrtf(ss/float32(len(x)) + eps)
	inv := 1.0 / rms
	s, err := NewStrider([]int{len(out)})
	if err != nil {
		return err
	}
	s.ParIterAxisMut(dev, out, []int{0}, 0, func(idx int, v *float32) {
		*v = x[idx] * inv * w[idx]
	})
	return nil
}

// Softmax normalizes x[0:limit] in place to a probability
// distribution, leaving x[limit:] untouched. Grounded in
// tensor_softmax_inplace: max-subtract for stability, exp-and-sum
// sequential (sum order fixed), divide parallel.
func Softmax(dev *Device, x []float32, limit int) error {
	if limit < 0 || limit > len(x) {
		return newShapeError("Softmax limit %d out of range for length %d", limit, len(x))
	}
	if limit == 0 {
		return nil
	}
	max := x[0]
	for _, v := range x[:limit] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i := 0; i < limit; i++ {
		e := expf(x[i] - max)
		x[i] = e
		sum += e
	}
	inv := 1.0 / sum
	dev.Parallelize(limit, func(start, end int) {
		for i := start; i < end; i++ {
			x[i] *= inv
		}
	})
	return nil
}

// SiLU applies x * sigmoid(x) in place, using the device's exp cache
// (tensor_silu_inplace / silu.rs's exp_f32_cached).
func SiLU(dev *Device, x []float32) {
	dev.Parallelize(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			n := x[i]
			x[i] = n / (1.0 + dev.expCached(-n))
		}
	})
}

// GELU applies the tanh approximation in place:
// 0.5*x*(1+tanh(sqrt(2/pi)*(x+0.044715*x^3))).
const geluCoeff = 0.7978845608028654 // sqrt(2/pi)

func GELU(dev *Device, x []float32) {
	dev.Parallelize(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			v := x[i]
			inner := geluCoeff * (v + 0.044715*v*v*v)
			x[i] = 0.5 * v * (1.0 + tanhf(inner))
		}
	})
}

// AddInplace computes a[i] += b[i]. Both operands must be the same
// shape — spec.md §4.5 requires add/mul/div operands to match exactly,
// and §1's Non-goals scope arbitrary broadcasting out entirely (the
// only broadcast this module supports is batched matmul's batch-axis
// rule). Dispatches to vecf32's vectorized add (gorgonia.org/vecf32,
// in-pack via csotherden-gorgonia-mps) since both operands are always
// the same contiguous length.
func AddInplace(dev *Device, a, b []float32) error {
	if len(a) != len(b) {
		return newShapeError("AddInplace length mismatch: a=%d b=%d", len(a), len(b))
	}
	vecf32.Add(a, b)
	return nil
}

// MulInplace computes a[i] *= b[i]; same same-shape requirement as
// AddInplace.
func MulInplace(dev *Device, a, b []float32) error {
	if len(a) != len(b) {
		return newShapeError("MulInplace length mismatch: a=%d b=%d", len(a), len(b))
	}
	vecf32.Mul(a, b)
	return nil
}

// DivInplace computes a[i] /= b[i]; same same-shape requirement as
// AddInplace.
func DivInplace(dev *Device, a, b []float32) error {
	if len(a) != len(b) {
		return newShapeError("DivInplace length mismatch: a=%d b=%d", len(a), len(b))
	}
	vecf32.Div(a, b)
	return nil
}
