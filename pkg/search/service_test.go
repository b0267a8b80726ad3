package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/core/text"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/embeddings"
	"github.com/similivec/similivec/pkg/projection"
)

var corpus = []docstore.Document{
	{ID: "cats", Content: "cats purr and chase mice around the house\n\ncats sleep most of the day"},
	{ID: "dogs", Content: "dogs bark at the mail carrier and fetch sticks in the park"},
	{ID: "go", Content: "go programs use goroutines and channels for concurrency"},
	{ID: "rust", Content: "rust enforces memory safety with ownership and borrowing"},
}

func newService(t *testing.T, opts Options) (*Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	for _, d := range corpus {
		require.NoError(t, store.Put(ctx, d))
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Index == (hnsw.Config{}) {
		opts.Index = hnsw.DefaultConfig()
	}
	// Small chunks so the two paragraphs of "cats" become separate nodes.
	opts.Chunker = func(s string) []text.Chunk { return text.ParagraphChunker(s, 50) }
	svc, err := New(store, embeddings.NewHashEmbedder(256), opts)
	require.NoError(t, err)
	return svc, store
}

func TestIndexAll(t *testing.T) {
	svc, _ := newService(t, Options{})
	ctx := context.Background()

	report, err := svc.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Documents)
	assert.Equal(t, 5, report.Chunks)
	assert.Equal(t, 0, report.Skipped)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Index.Nodes)
	assert.Equal(t, 4, stats.Documents)
	assert.Equal(t, 5, stats.Mapped)
	assert.Equal(t, []uint32{1, 2}, svc.NodesOf("cats"))
	require.NoError(t, svc.Index().Verify())

	// A rebuild starts from fresh ids.
	_, err = svc.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, svc.NodesOf("cats"))
	assert.Equal(t, 5, svc.Index().Len())
}

func TestSearchGroupsByDocument(t *testing.T) {
	svc, _ := newService(t, Options{})
	ctx := context.Background()
	_, err := svc.IndexAll(ctx)
	require.NoError(t, err)

	resp, err := svc.Search(ctx, "cats sleep", 10)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "cats", resp.Results[0].DocumentID)
	assert.Nil(t, resp.QueryPosition, "no pca model yet")

	seen := map[string]bool{}
	for i, h := range resp.Results {
		assert.False(t, seen[h.DocumentID], "document %s repeated", h.DocumentID)
		seen[h.DocumentID] = true
		assert.InDelta(t, 1-h.Distance, h.Similarity, 1e-9)
		assert.Equal(t, h.NodeID, resp.ResultNodeIDs[i])
		assert.Equal(t, h.DocumentID, resp.Documents[i].ID)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Results[i-1].Similarity, h.Similarity)
		}
	}
	assert.Len(t, resp.Results, 4)
}

func TestSearchErrors(t *testing.T) {
	svc, _ := newService(t, Options{})
	ctx := context.Background()

	_, err := svc.Search(ctx, "  ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	resp, err := svc.Search(ctx, "anything", 0)
	require.NoError(t, err, "empty index answers with no results")
	assert.Empty(t, resp.Results)
}

func TestAddDocument(t *testing.T) {
	svc, store := newService(t, Options{})
	ctx := context.Background()
	_, err := svc.IndexAll(ctx)
	require.NoError(t, err)

	id, n, err := svc.AddDocument(ctx, docstore.Document{Content: "penguins swim in cold antarctic water"}, true)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, n)
	assert.Equal(t, 6, svc.Index().Len())

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, got.Content, "penguins")

	resp, err := svc.Search(ctx, "penguins swim", 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, id, resp.Results[0].DocumentID)

	_, n, err = svc.AddDocument(ctx, docstore.Document{ID: "later", Content: "stored only"}, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 6, svc.Index().Len())

	_, _, err = svc.AddDocument(ctx, docstore.Document{ID: "x", Content: " "}, true)
	assert.ErrorIs(t, err, docstore.ErrInvalidDocument)
}

// widthEmbedder returns 3-dimensional vectors, except for texts containing
// "narrow", which get 2 dimensions and therefore fail to insert.
type widthEmbedder struct{}

func (widthEmbedder) Embed(_ context.Context, s string) ([]float32, error) {
	if strings.Contains(s, "narrow") {
		return []float32{1, 1}, nil
	}
	return []float32{1, float32(len(s)), 1}, nil
}

func TestAddDocumentReportsPartialInsert(t *testing.T) {
	svc, err := New(docstore.NewMemoryStore(), widthEmbedder{}, Options{
		Index:   hnsw.DefaultConfig(),
		Seed:    7,
		Chunker: func(s string) []text.Chunk { return text.ParagraphChunker(s, 10) },
	})
	require.NoError(t, err)
	ctx := context.Background()

	doc := docstore.Document{ID: "mixed", Content: "first one\n\nsecond\n\nnarrow bit\n\nlast"}
	_, n, err := svc.AddDocument(ctx, doc, true)
	require.ErrorIs(t, err, hnsw.ErrDimensionMismatch)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, svc.Index().Len())
	assert.Equal(t, []uint32{1, 2}, svc.NodesOf("mixed"))
}

func TestIngestFileSkipsUnchanged(t *testing.T) {
	svc, _ := newService(t, Options{})
	ctx := context.Background()

	doc := docstore.Document{ID: "notes.txt", Content: "meeting notes about the roadmap"}
	n, err := svc.IngestFile(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.IngestFile(ctx, doc)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, svc.Index().Len())
}

func TestPCANodesAndQueryPosition(t *testing.T) {
	svc, _ := newService(t, Options{})
	ctx := context.Background()

	nodes, err := svc.PCANodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = svc.IndexAll(ctx)
	require.NoError(t, err)

	nodes, err = svc.PCANodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 5)
	for i, n := range nodes {
		assert.Equal(t, uint32(i+1), n.ID)
		assert.Len(t, n.ReducedVector, 3)
		assert.NotEmpty(t, n.DocumentID)
		assert.NotEmpty(t, n.Content)
	}

	resp, err := svc.Search(ctx, "goroutines", 2)
	require.NoError(t, err)
	assert.Len(t, resp.QueryPosition, 3)

	// Reindexing invalidates the model.
	_, err = svc.IndexAll(ctx)
	require.NoError(t, err)
	resp, err = svc.Search(ctx, "goroutines", 2)
	require.NoError(t, err)
	assert.Nil(t, resp.QueryPosition)
}

func umapServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	calls := new(atomic.Int32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Indices [][]int `json:"indices"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		coords := make([][]float32, len(req.Indices))
		for i := range coords {
			coords[i] = []float32{float32(i), float32(2 * i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"coordinates": coords})
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestUMAPNodes(t *testing.T) {
	srv, calls := umapServer(t)
	svc, _ := newService(t, Options{UMAP: projection.NewUMAPClient(srv.URL, 5*time.Second), KnnK: 3})
	ctx := context.Background()

	_, err := svc.UMAPNodes(ctx)
	assert.ErrorIs(t, err, ErrNotEnoughNodes)

	_, err = svc.IndexAll(ctx)
	require.NoError(t, err)

	nodes, err := svc.UMAPNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 5)
	assert.EqualValues(t, 1, calls.Load())
	for _, n := range nodes {
		assert.Len(t, n.ReducedVector, 2)
	}
	// Normalized: the middle node sits at the mean.
	assert.InDeltaSlice(t, []float32{0, 0}, nodes[2].ReducedVector, 1e-6)

	resp, err := svc.SearchUMAP(ctx, "cats purr", 2)
	require.NoError(t, err)
	assert.Len(t, resp.QueryPosition, 2)
	assert.EqualValues(t, 1, calls.Load(), "existing projection is reused")
}

func TestSearchUMAPComputesProjection(t *testing.T) {
	srv, calls := umapServer(t)
	svc, _ := newService(t, Options{UMAP: projection.NewUMAPClient(srv.URL, 5*time.Second)})
	ctx := context.Background()
	_, err := svc.IndexAll(ctx)
	require.NoError(t, err)

	resp, err := svc.SearchUMAP(ctx, "dogs bark", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Len(t, resp.QueryPosition, 2)
}

func TestUMAPNotConfigured(t *testing.T) {
	svc, _ := newService(t, Options{})
	_, err := svc.UMAPNodes(context.Background())
	assert.ErrorIs(t, err, ErrProjectionAbsent)
}

func TestWeightedPosition(t *testing.T) {
	coords := map[uint32][]float32{1: {0, 0}, 2: {4, 8}}

	got := weightedPosition([]Hit{{NodeID: 1, Similarity: 1}, {NodeID: 2, Similarity: 3}}, coords)
	assert.InDeltaSlice(t, []float32{3, 6}, got, 1e-6)

	got = weightedPosition([]Hit{{NodeID: 1, Similarity: -1}, {NodeID: 2, Similarity: 0}}, coords)
	assert.InDeltaSlice(t, []float32{2, 4}, got, 1e-6, "plain mean without positive weights")

	assert.Nil(t, weightedPosition([]Hit{{NodeID: 9}}, coords))
}

func TestKnnMatrixDefaultsK(t *testing.T) {
	svc, _ := newService(t, Options{KnnK: 2})
	ctx := context.Background()
	_, err := svc.IndexAll(ctx)
	require.NoError(t, err)

	m, err := svc.KnnMatrix(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, 2, m.K)
}

func TestConcurrentSearchDuringReindex(t *testing.T) {
	svc, _ := newService(t, Options{})
	ctx := context.Background()
	_, err := svc.IndexAll(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := svc.Search(ctx, "memory safety", 3)
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		_, err := svc.IndexAll(ctx)
		require.NoError(t, err)
	}
	wg.Wait()
	require.NoError(t, svc.Index().Verify())
}
