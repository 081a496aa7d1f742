// Package similarity provides the pure numeric and string comparison
// primitives used by vector search and duplicate detection.
package similarity

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when two vectors have different lengths
var ErrDimensionMismatch = errors.New("vector dimensions do not match")

// Cosine computes the cosine similarity between two embedding vectors.
// It returns 0 when either vector has zero magnitude.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
