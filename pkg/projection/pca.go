// Package projection maps high-dimensional embeddings to a few coordinates
// for visualization, either locally with PCA or through an external UMAP
// service.
package projection

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoData            = errors.New("projection: no vectors to fit")
	ErrDimensionMismatch = errors.New("projection: vector dimension does not match the model")
	ErrNotFitted         = errors.New("projection: model has not been fitted")
	ErrUnavailable       = errors.New("projection: service unavailable")
)

// DefaultComponents is the number of output coordinates used for the 3D view.
const DefaultComponents = 3

// PCA is a principal component projection learned from a set of vectors.
// The zero value is unfitted. A fitted PCA is immutable and safe for
// concurrent use.
type PCA struct {
	mean  []float64
	basis *mat.Dense // dim x components
}

// FitPCA learns the first components principal axes of vectors. components
// is clamped to the vector dimension.
func FitPCA(vectors [][]float32, components int) (*PCA, error) {
	if len(vectors) == 0 {
		return nil, ErrNoData
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, ErrNoData
	}
	if components <= 0 {
		components = DefaultComponents
	}
	components = min(components, dim)

	data := mat.NewDense(len(vectors), dim, nil)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		for j, x := range v {
			data.Set(i, j, float64(x))
		}
	}

	mean := make([]float64, dim)
	for j := range mean {
		mean[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return nil, errors.New("projection: principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	// With fewer observations than dimensions the decomposition yields fewer axes.
	_, available := vecs.Dims()
	basis := mat.NewDense(dim, components, nil)
	basis.Copy(vecs.Slice(0, dim, 0, min(components, available)))

	return &PCA{mean: mean, basis: basis}, nil
}

// Dim returns the input dimension.
func (p *PCA) Dim() int { return len(p.mean) }

// Components returns the output dimension.
func (p *PCA) Components() int {
	_, c := p.basis.Dims()
	return c
}

// Transform projects one vector onto the fitted axes.
func (p *PCA) Transform(v []float32) ([]float32, error) {
	if p == nil || p.basis == nil {
		return nil, ErrNotFitted
	}
	if len(v) != len(p.mean) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), len(p.mean))
	}

	centered := make([]float64, len(v))
	for i, x := range v {
		centered[i] = float64(x) - p.mean[i]
	}
	var out mat.VecDense
	out.MulVec(p.basis.T(), mat.NewVecDense(len(centered), centered))

	res := make([]float32, out.Len())
	for i := range res {
		res[i] = float32(out.AtVec(i))
	}
	return res, nil
}

// Project transforms every vector, in order.
func (p *PCA) Project(vectors [][]float32) ([][]float32, error) {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		r, err := p.Transform(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}
