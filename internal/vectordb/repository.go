package vectordb

import (
	"fmt"
	"math"
	"sort"

	"github.com/lexbr/legal-qa-system/internal/models"
)

// ComputeDistance returns the distance between two vectors under the
// given metric.
func ComputeDistance(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("vector dimensions do not match: %d vs %d", len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		return cosineDistance(v1, v2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return euclideanDistance(v1, v2), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// cosineDistance is 1 - cosine similarity.
func cosineDistance(v1, v2 []float32) float32 {
	dot := dotProduct(v1, v2)
	norm1 := vectorNorm(v1)
	norm2 := vectorNorm(v2)

	if norm1 == 0 || norm2 == 0 {
		return 1.0
	}

	similarity := dot / (norm1 * norm2)
	// Guard against float drift above 1.
	if similarity > 1.0 {
		similarity = 1.0
	}
	return 1.0 - similarity
}

func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

func euclideanDistance(v1, v2 []float32) float32 {
	var sum float32
	for i := 0; i < len(v1); i++ {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// vectorNorm computes the L2 norm.
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// SanitizeMetadata enforces the flat-scalar invariant at the store
// boundary: lists are joined into comma-separated strings and any other
// non-scalar value is stringified. Crossing the boundary with a nested
// value is a contract violation, not a recoverable runtime error, so the
// coercion is unconditional.
func SanitizeMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return make(map[string]interface{})
	}
	clean := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		clean[key] = models.FlattenValue(value)
	}
	return clean
}

// matchMetadata reports whether an entry's metadata satisfies every
// constraint in the filter. An empty filter matches everything.
func matchMetadata(entryMeta map[string]interface{}, filterMeta map[string]interface{}) bool {
	if len(filterMeta) == 0 {
		return true
	}

	for key, want := range filterMeta {
		got, exists := entryMeta[key]
		if !exists || got != want {
			return false
		}
	}
	return true
}

// SortSearchResults orders results by score descending. The sort is
// stable so equally scored entries keep their insertion order.
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DistanceToScore maps a raw distance into a [0,1] similarity score.
func DistanceToScore(distance float32, distType DistanceType) float32 {
	switch distType {
	case Cosine:
		return 1 - distance
	case DotProduct:
		// For normalized vectors the inner product lies in [-1,1].
		return (distance + 1) / 2
	case Euclidean:
		// Gaussian decay: smaller distance, higher score.
		return float32(math.Exp(-float64(distance)))
	default:
		return 0
	}
}

// ValidateVector checks dimension and non-emptiness.
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", expectedDim, len(vector))
	}
	return nil
}
