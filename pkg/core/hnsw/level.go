package hnsw

import (
	"math"
	"math/rand"
)

// MaxSampledLevel caps the level SampleLevel returns. With the usual ml
// below 1 a level this high has probability far under 1e-12, so the cap only
// matters for oversized ml values, which would otherwise ask for millions of
// layers or overflow int.
const MaxSampledLevel = 32

// SampleLevel draws the top layer for a new node from the geometric
// distribution floor(-ln(U) * ml), U uniform in (0, 1), capped at
// MaxSampledLevel.
//
// A draw of exactly zero is rejected so the logarithm stays finite.
// ml <= 0 always yields level 0.
func SampleLevel(rng *rand.Rand, ml float64) int {
	if ml <= 0 {
		return 0
	}
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	level := math.Floor(-math.Log(u) * ml)
	if level >= MaxSampledLevel || math.IsNaN(level) {
		return MaxSampledLevel
	}
	return int(level)
}
