package embedding

import "math"

// normEpsilon keeps zero vectors from producing NaN scores.
const normEpsilon = 1e-9

// Normalize returns the L2-normalized copy of v.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot returns the dot product of a and b. For normalized vectors this is
// their cosine similarity. Mismatched lengths score zero.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity normalizes both vectors before taking the dot product.
func CosineSimilarity(a, b []float32) float64 {
	return Dot(Normalize(a), Normalize(b))
}
