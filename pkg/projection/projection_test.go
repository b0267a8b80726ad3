package projection

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCAFindsDominantAxis(t *testing.T) {
	// Points spread along x, with a little noise on y and z.
	var vectors [][]float32
	for i := -5; i <= 5; i++ {
		vectors = append(vectors, []float32{float32(i), float32(i%2) * 0.1, 0.05})
	}

	p, err := FitPCA(vectors, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Components())
	assert.Equal(t, 3, p.Dim())

	projected, err := p.Project(vectors)
	require.NoError(t, err)
	require.Len(t, projected, len(vectors))

	// The first component carries the x spread, up to sign.
	for i, v := range vectors {
		assert.InDelta(t, math.Abs(float64(v[0])), math.Abs(float64(projected[i][0])), 0.1)
	}

	// The mean maps to the origin.
	origin, err := p.Transform([]float32{0, float32(0.1 * 5 / 11), 0.05})
	require.NoError(t, err)
	assert.InDelta(t, 0, origin[0], 1e-6)
}

func TestPCAClampsComponents(t *testing.T) {
	p, err := FitPCA([][]float32{{1, 2}, {3, 5}, {4, 1}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Components())

	p, err = FitPCA([][]float32{{1, 2}, {3, 5}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Components())
}

func TestPCAErrors(t *testing.T) {
	_, err := FitPCA(nil, 3)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = FitPCA([][]float32{{1, 2}, {1}}, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	var unfitted *PCA
	_, err = unfitted.Transform([]float32{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	p, err := FitPCA([][]float32{{1, 2, 3}, {3, 2, 1}}, 2)
	require.NoError(t, err)
	_, err = p.Transform([]float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNormalize(t *testing.T) {
	points := [][]float32{{1, 10, 5}, {3, 10, 5}, {5, 10}}
	out, params := Normalize(points, 3)

	// x: mean 3, population std sqrt(8/3).
	std := math.Sqrt(8.0 / 3.0)
	assert.InDelta(t, 3, params.Mean[0], 1e-9)
	assert.InDelta(t, std, params.Std[0], 1e-9)
	assert.InDelta(t, -2/std, out[0][0], 1e-6)
	assert.InDelta(t, 0, out[1][0], 1e-6)

	// y has no spread: std falls back to 1.
	assert.Equal(t, 1.0, params.Std[1])
	assert.InDelta(t, 0, out[0][1], 1e-6)

	// The short point was padded with z = 0.
	assert.InDelta(t, 10.0/3.0, params.Mean[2], 1e-6)
	require.Len(t, out[2], 3)

	assert.Equal(t, []float32{0, 0, 0}, params.Apply([]float32{1}))
}

func TestNormalizeEmpty(t *testing.T) {
	out, params := Normalize(nil, 3)
	assert.Empty(t, out)
	assert.Equal(t, IdentityParams(3), params)
	assert.Equal(t, []float32{2, 3, 4}, params.Apply([]float32{2, 3, 4}))
}

func TestUMAPClientProject(t *testing.T) {
	var got umapRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project-knn", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		coords := make([][]float32, len(got.Indices))
		for i := range coords {
			coords[i] = []float32{float32(i), 0, 0}
		}
		json.NewEncoder(w).Encode(umapResponse{Coordinates: coords})
	}))
	defer srv.Close()

	m := &hnsw.KnnMatrix{
		IDs:       []uint32{10, 20, 30},
		Indices:   [][]int{{1, 2}, {0}, {}},
		Distances: [][]float32{{0.1, 0.2}, {0.1}, {}},
		K:         2,
	}
	coords, err := NewUMAPClient(srv.URL+"/", time.Second).Project(context.Background(), m, 50)
	require.NoError(t, err)
	assert.Len(t, coords, 3)

	assert.Equal(t, 50, got.NEpochs)
	assert.Equal(t, [][]int{{1, 2}, {0, 0}, {2, 2}}, got.Indices)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.1, 0.1}, {0, 0}}, got.Distances)
}

func TestUMAPClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "umap exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := &hnsw.KnnMatrix{IDs: []uint32{1}, Indices: [][]int{{}}, Distances: [][]float32{{}}}
	_, err := NewUMAPClient(srv.URL, time.Second).Project(context.Background(), m, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "umap exploded")

	_, err = NewUMAPClient(srv.URL, time.Second).Project(context.Background(), &hnsw.KnnMatrix{}, 0)
	assert.ErrorIs(t, err, ErrNoData)

	// Nothing listens on this address.
	dead := NewUMAPClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err = dead.Project(context.Background(), m, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
}
