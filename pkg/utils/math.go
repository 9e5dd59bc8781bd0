package utils

import "math"

// NormalizeL2 scales an embedding vector in place to unit L2 norm, so the
// vector index can rank by plain dot product. A zero vector is left as is.
// The sum of squares is accumulated in float64 to keep precision over long
// vectors.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= inv
	}
}
