package tensor

import "github.com/chewxy/math32"

// Thin float32-native wrappers around chewxy/math32 (in-pack via
// csotherden-gorgonia-mps and itohio-EasyRobot). The teacher's quant.go
// and yent.go round-trip every transcendental through float64
// (math.Sqrt, math.Exp) even though every value involved is already
// float32; math32 avoids that conversion on the hot elementwise paths
// (RMS-norm, softmax, SiLU, GELU, RoPE, attention's 1/sqrt(headSize)).
func sqrtf(x float32) float32 { return math32.Sqrt(x) }
func expf(x float32) float32  { return math32.Exp(x) }
func tanhf(x float32) float32 { return math32.Tanh(x) }
func cosf(x float32) float32  { return math32.Cos(x) }
func sinf(x float32) float32  { return math32.Sin(x) }
func powf(x, y float32) float32 { return math32.Pow(x, y) }
