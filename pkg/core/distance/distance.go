// Package distance provides the vector distance functions used by the graph index.
//
// Cosine distance is computed with the Gonum BLAS engine, which dispatches to
// SIMD kernels internally when the CPU supports them. The index only ever
// compares vectors of the same dimensionality, so the hot-path functions do not
// validate lengths; CosineChecked is the validating variant for callers that
// handle untrusted input.
package distance

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/blas/gonum"
)

// ErrDimensionMismatch is returned when two vectors of different length are compared.
var ErrDimensionMismatch = errors.New("vectors must have the same length")

// NeutralSimilarity is substituted whenever the cosine similarity is undefined:
// a zero-magnitude vector (0/0) or a non-finite intermediate result.
// A NaN that reached a heap comparison would silently corrupt its ordering.
const NeutralSimilarity = 0.0

var gonumEngine = gonum.Implementation{}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return float64(gonumEngine.Snrm2(len(v), v, 1))
}

// Dot returns the dot product of a and b. It assumes len(a) == len(b).
func Dot(a, b []float32) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(gonumEngine.Sdot(len(a), a, 1, b, 1))
}

// Similarity returns the cosine similarity of a and b in [-1, 1].
// Degenerate inputs yield NeutralSimilarity.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return NeutralSimilarity
	}
	return SimilarityWithNorms(a, b, Norm(a), Norm(b))
}

// SimilarityWithNorms is Similarity with pre-computed norms, used on the
// search hot path where the query norm is computed once and node norms are
// cached at insertion.
func SimilarityWithNorms(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return NeutralSimilarity
	}
	sim := Dot(a, b) / (normA * normB)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return NeutralSimilarity
	}
	// float32 accumulation can overshoot the [-1, 1] range by a few ulps.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// Cosine returns the cosine distance 1 - similarity(a, b), in [0, 2].
func Cosine(a, b []float32) float64 {
	return 1 - Similarity(a, b)
}

// CosineWithNorms is Cosine with pre-computed norms.
func CosineWithNorms(a, b []float32, normA, normB float64) float64 {
	return 1 - SimilarityWithNorms(a, b, normA, normB)
}

// CosineChecked is Cosine with length validation.
func CosineChecked(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine distance %d vs %d: %w", len(a), len(b), ErrDimensionMismatch)
	}
	return Cosine(a, b), nil
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Normalize scales v to unit length in place. It returns false, leaving v
// untouched, when v has zero magnitude.
func Normalize(v []float32) bool {
	n := Norm(v)
	if n == 0 {
		return false
	}
	gonumEngine.Sscal(len(v), float32(1/n), v, 1)
	return true
}

// Engine describes the compute backend, for the start-up log.
func Engine() string {
	features := make([]string, 0, 3)
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma3"},
		{cpuid.AVX512F, "avx512f"},
	} {
		if cpuid.CPU.Has(f.id) {
			features = append(features, f.name)
		}
	}
	if len(features) == 0 {
		features = append(features, "scalar")
	}
	return fmt.Sprintf("gonum blas on %s [%s]", cpuid.CPU.BrandName, strings.Join(features, ","))
}
