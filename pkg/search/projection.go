package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/similivec/similivec/pkg/metrics"
	"github.com/similivec/similivec/pkg/projection"
)

// PCANodes fits a PCA on every node vector, z-score normalizes the projected
// coordinates and returns them in id order. The fitted model is kept so later
// queries report their position in the same space.
func (s *Service) PCANodes(ctx context.Context) ([]ProjectedNode, error) {
	idx, mapper := s.current()
	ids, vectors := idx.Vectors()
	if len(ids) == 0 {
		return []ProjectedNode{}, nil
	}

	start := time.Now()
	model, err := projection.FitPCA(vectors, s.opts.PCAComponents)
	if err != nil {
		return nil, fmt.Errorf("fit pca: %w", err)
	}
	coords, err := model.Project(vectors)
	if err != nil {
		return nil, err
	}
	coords, params := projection.Normalize(coords, model.Components())

	s.projMu.Lock()
	s.pca, s.pcaParams = model, params
	s.projMu.Unlock()

	slog.Debug("pca projection computed", "nodes", len(ids), "duration", time.Since(start))
	return s.attach(ctx, mapper, ids, coords), nil
}

// pcaPosition places a query vector in the last PCA view, or returns nil when
// no model has been fitted.
func (s *Service) pcaPosition(qvec []float32) []float32 {
	s.projMu.RLock()
	model, params := s.pca, s.pcaParams
	s.projMu.RUnlock()
	if model == nil {
		return nil
	}
	pos, err := model.Transform(qvec)
	if err != nil {
		return nil
	}
	return params.Apply(pos)
}

// UMAPNodes sends the graph's k-nearest-neighbor table to the UMAP service and
// returns the normalized coordinates in id order.
func (s *Service) UMAPNodes(ctx context.Context) ([]ProjectedNode, error) {
	if s.opts.UMAP == nil {
		return nil, ErrProjectionAbsent
	}
	idx, mapper := s.current()
	if idx.Len() < 2 {
		return nil, ErrNotEnoughNodes
	}

	start := time.Now()
	m, err := s.KnnMatrix(ctx, s.opts.KnnK)
	if err != nil {
		return nil, err
	}
	coords, err := s.opts.UMAP.Project(ctx, m, s.opts.UMAPEpochs)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("umap").Inc()
		return nil, fmt.Errorf("umap projection: %w", err)
	}
	if len(coords) != m.Len() {
		return nil, fmt.Errorf("%w: got %d rows for %d nodes", projection.ErrUnavailable, len(coords), m.Len())
	}
	dims := 0
	for _, c := range coords {
		dims = max(dims, len(c))
	}
	coords, _ = projection.Normalize(coords, dims)

	byID := make(map[uint32][]float32, len(coords))
	for i, id := range m.IDs {
		byID[id] = coords[i]
	}
	s.projMu.Lock()
	s.umapCoords = byID
	s.projMu.Unlock()

	slog.Info("umap projection computed", "nodes", m.Len(), "duration", time.Since(start))
	return s.attach(ctx, mapper, m.IDs, coords), nil
}

// SearchUMAP runs Search and places the query in the UMAP view at the mean of
// its hits' coordinates, weighted by similarity. The projection is computed
// first when it does not exist yet.
func (s *Service) SearchUMAP(ctx context.Context, query string, k int) (*Response, error) {
	resp, err := s.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	s.projMu.RLock()
	coords := s.umapCoords
	s.projMu.RUnlock()
	if coords == nil {
		if _, err := s.UMAPNodes(ctx); err != nil {
			return nil, err
		}
		s.projMu.RLock()
		coords = s.umapCoords
		s.projMu.RUnlock()
	}

	resp.QueryPosition = weightedPosition(resp.Results, coords)
	return resp, nil
}

// weightedPosition averages the coordinates of hits, weighted by their
// similarity. Hits with no positive weight fall back to a plain mean.
func weightedPosition(hits []Hit, coords map[uint32][]float32) []float32 {
	var (
		sum    []float64
		plain  []float64
		weight float64
		count  int
	)
	for _, h := range hits {
		c, ok := coords[h.NodeID]
		if !ok {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(c))
			plain = make([]float64, len(c))
		}
		w := max(h.Similarity, 0)
		for d := 0; d < len(sum) && d < len(c); d++ {
			sum[d] += w * float64(c[d])
			plain[d] += float64(c[d])
		}
		weight += w
		count++
	}
	if count == 0 {
		return nil
	}

	out := make([]float32, len(sum))
	for d := range out {
		if weight > 0 {
			out[d] = float32(sum[d] / weight)
		} else {
			out[d] = float32(plain[d] / float64(count))
		}
	}
	return out
}

// NodesOf returns the graph node ids holding the chunks of a document.
func (s *Service) NodesOf(docID string) []uint32 {
	_, mapper := s.current()
	return mapper.NodesOf(docID)
}
