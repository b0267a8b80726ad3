package hnsw

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// KnnMatrix is the k-nearest-neighbor table of every node in the graph.
//
// Rows follow the id-sorted enumeration in IDs. Indices hold positions into
// IDs, not raw node ids, which is what projection tools expect.
type KnnMatrix struct {
	IDs       []uint32    `json:"ids"`
	Indices   [][]int     `json:"indices"`
	Distances [][]float32 `json:"distances"`
	K         int         `json:"k"`
}

// Len returns the number of rows.
func (m *KnnMatrix) Len() int { return len(m.IDs) }

// KnnMatrix searches the graph once per node, in parallel, and collects the
// k nearest other nodes of each one. A row holds fewer than k entries when
// the search could not reach k other nodes.
//
// The read lock is held for the whole batch, so the output is deterministic
// for a given graph and ef. Cancelling ctx aborts the batch.
func (h *Index) KnnMatrix(ctx context.Context, k, efSearch int) (*KnnMatrix, error) {
	if k <= 0 {
		return nil, fmt.Errorf("knn matrix: %w, got %d", ErrInvalidK, k)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := h.sortedIDsUnlocked()
	position := make(map[uint32]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	out := &KnnMatrix{
		IDs:       ids,
		Indices:   make([][]int, len(ids)),
		Distances: make([][]float32, len(ids)),
		K:         k,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// One extra result because the node finds itself.
			hits, err := h.searchUnlocked(h.nodes[id].Vector, k+1, efSearch)
			if err != nil {
				return fmt.Errorf("knn matrix: node %d: %w", id, err)
			}

			row := make([]int, 0, k)
			dists := make([]float32, 0, k)
			for _, hit := range hits {
				if hit.ID == id {
					continue
				}
				if len(row) == k {
					break
				}
				row = append(row, position[hit.ID])
				dists = append(dists, float32(hit.Distance))
			}
			out.Indices[i] = row
			out.Distances[i] = dists
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
