package projection

import (
	"gonum.org/v1/gonum/stat"
)

// Params are the per-axis mean and population standard deviation of a point
// set. They are kept so later points (a query) land in the same space.
type Params struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// IdentityParams leaves points unchanged.
func IdentityParams(dims int) Params {
	p := Params{Mean: make([]float64, dims), Std: make([]float64, dims)}
	for i := range p.Std {
		p.Std[i] = 1
	}
	return p
}

// FitNormalizer computes z-score parameters over the first dims axes of
// points. Missing coordinates count as 0, and an axis with no spread gets a
// standard deviation of 1.
func FitNormalizer(points [][]float32, dims int) Params {
	if len(points) == 0 {
		return IdentityParams(dims)
	}

	p := Params{Mean: make([]float64, dims), Std: make([]float64, dims)}
	axis := make([]float64, len(points))
	for d := 0; d < dims; d++ {
		for i, pt := range points {
			if d < len(pt) {
				axis[i] = float64(pt[d])
			} else {
				axis[i] = 0
			}
		}
		mean, std := stat.PopMeanStdDev(axis, nil)
		if std == 0 {
			std = 1
		}
		p.Mean[d], p.Std[d] = mean, std
	}
	return p
}

// Apply normalizes one point. A point with fewer coordinates than the
// parameters maps to the origin.
func (p Params) Apply(point []float32) []float32 {
	out := make([]float32, len(p.Mean))
	if len(point) < len(p.Mean) {
		return out
	}
	for d := range out {
		std := p.Std[d]
		if std == 0 {
			std = 1
		}
		out[d] = float32((float64(point[d]) - p.Mean[d]) / std)
	}
	return out
}

// Normalize fits parameters on points and applies them to every point.
// Points missing coordinates are padded with zeros before normalizing.
func Normalize(points [][]float32, dims int) ([][]float32, Params) {
	params := FitNormalizer(points, dims)
	out := make([][]float32, len(points))
	for i, pt := range points {
		if len(pt) < dims {
			padded := make([]float32, dims)
			copy(padded, pt)
			pt = padded
		}
		out[i] = params.Apply(pt)
	}
	return out, params
}
