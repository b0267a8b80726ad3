package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/similivec/similivec/pkg/core/hnsw"
)

const (
	DefaultUMAPURL    = "http://127.0.0.1:8000"
	DefaultUMAPEpochs = 200
)

// UMAPClient sends a precomputed k-nearest-neighbor table to the UMAP service
// and reads back one coordinate row per node.
type UMAPClient struct {
	URL    string
	Client *http.Client
}

func NewUMAPClient(url string, timeout time.Duration) *UMAPClient {
	if url == "" {
		url = DefaultUMAPURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &UMAPClient{
		URL:    strings.TrimSuffix(url, "/"),
		Client: &http.Client{Timeout: timeout},
	}
}

type umapRequest struct {
	Indices   [][]int     `json:"indices"`
	Distances [][]float32 `json:"distances"`
	NEpochs   int         `json:"n_epochs"`
}

type umapResponse struct {
	Coordinates [][]float32 `json:"coordinates"`
}

// Project returns the UMAP coordinates of every row of m, in row order.
func (c *UMAPClient) Project(ctx context.Context, m *hnsw.KnnMatrix, epochs int) ([][]float32, error) {
	if m == nil || m.Len() == 0 {
		return nil, ErrNoData
	}
	if epochs <= 0 {
		epochs = DefaultUMAPEpochs
	}

	indices, distances := rectangular(m)
	payload, err := json.Marshal(umapRequest{Indices: indices, Distances: distances, NEpochs: epochs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/project-knn", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %s: %s", ErrUnavailable, resp.Status, bytes.TrimSpace(body))
	}

	var out umapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode umap response: %w", err)
	}
	if len(out.Coordinates) != m.Len() {
		return nil, fmt.Errorf("umap returned %d coordinates for %d nodes", len(out.Coordinates), m.Len())
	}
	return out.Coordinates, nil
}

// rectangular pads every row to the widest row, since the service needs a
// dense matrix. Short rows repeat their last neighbor; an empty row points
// at the node itself with distance 0.
func rectangular(m *hnsw.KnnMatrix) ([][]int, [][]float32) {
	width := 0
	for _, row := range m.Indices {
		width = max(width, len(row))
	}
	width = max(width, 1)

	indices := make([][]int, len(m.Indices))
	distances := make([][]float32, len(m.Indices))
	for i, row := range m.Indices {
		idx := make([]int, width)
		dst := make([]float32, width)
		copy(idx, row)
		copy(dst, m.Distances[i])
		for j := len(row); j < width; j++ {
			if len(row) == 0 {
				idx[j], dst[j] = i, 0
				continue
			}
			idx[j], dst[j] = row[len(row)-1], m.Distances[i][len(row)-1]
		}
		indices[i], distances[i] = idx, dst
	}
	return indices, distances
}
