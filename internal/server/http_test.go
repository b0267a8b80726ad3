package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/similivec/similivec/internal/config"
	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/embeddings"
	"github.com/similivec/similivec/pkg/search"
)

func newTestService(t *testing.T) *search.Service {
	t.Helper()
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	for _, d := range []docstore.Document{
		{ID: "alpha", Content: "graphs connect nodes with edges"},
		{ID: "beta", Content: "bread needs flour water and yeast"},
		{ID: "gamma", Content: "rivers flow into the sea"},
	} {
		require.NoError(t, store.Put(ctx, d))
	}
	svc, err := search.New(store, embeddings.NewHashEmbedder(128), search.Options{Index: hnsw.DefaultConfig(), Seed: 3})
	require.NoError(t, err)
	_, err = svc.IndexAll(ctx)
	require.NoError(t, err)
	return svc
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	srv := NewServer(newTestService(t), cfg, WithKnnK(2))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, header ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthzAndAuth(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{AuthToken: "test-secret-token"})

	resp, _ := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/stats", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "bearer token")

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/stats", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/stats", "", "Authorization", "Bearer test-secret-token")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "metrics stay open")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{CORSOrigin: "*"})
	resp, _ := do(t, http.MethodOptions, ts.URL+"/api/search", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	resp, body := do(t, http.MethodGet, ts.URL+"/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Documents int    `json:"documents"`
		Engine    string `json:"distance_engine"`
		Index     struct {
			Nodes int `json:"nodes"`
		} `json:"index"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 3, got.Documents)
	assert.Equal(t, 3, got.Index.Nodes)
	assert.NotEmpty(t, got.Engine)
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	for _, body := range []string{`{"query": "flour and yeast"}`, `"flour and yeast"`} {
		resp, data := do(t, http.MethodPost, ts.URL+"/api/search?k=2", body)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

		var got search.Response
		require.NoError(t, json.Unmarshal(data, &got))
		require.NotEmpty(t, got.Results)
		assert.LessOrEqual(t, len(got.Results), 2)
		assert.Equal(t, "beta", got.Results[0].DocumentID)
	}

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/search", `{"query": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/search?k=zero", `"x"`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/search", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/search", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestUMAPUnavailable(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	resp, _ := do(t, http.MethodGet, ts.URL+"/api/nodes/umap", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/search/umap", `{"query": "rivers"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPCAAndKnnEndpoints(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	resp, data := do(t, http.MethodGet, ts.URL+"/api/nodes/pca", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var nodes NodesResponse
	require.NoError(t, json.Unmarshal(data, &nodes))
	assert.Len(t, nodes.Nodes, 3)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/knn", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m hnsw.KnnMatrix
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, 2, m.K)
	assert.Len(t, m.IDs, 3)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/knn?k=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocumentEndpoints(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	resp, data := do(t, http.MethodPost, ts.URL+"/api/documents",
		`{"content": "volcanoes erupt molten lava", "metadata": {"topic": "geology"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var added AddDocumentResponse
	require.NoError(t, json.Unmarshal(data, &added))
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, 1, added.Chunks)
	assert.Equal(t, []uint32{4}, added.Nodes)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/documents/"+added.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc docstore.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "geology", doc.Metadata["topic"])

	resp, data = do(t, http.MethodPost, ts.URL+"/api/documents", `{"id": "notes/a.md", "content": "kept aside", "index": false}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/documents/notes/a.md", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "ids may contain slashes")

	resp, data = do(t, http.MethodGet, ts.URL+"/api/documents", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Documents []docstore.Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list.Documents, 5)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/documents/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/documents", `{"content": "  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/documents", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIndexTask(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	resp, data := do(t, http.MethodPost, ts.URL+"/api/index", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var started TaskResponse
	require.NoError(t, json.Unmarshal(data, &started))
	require.NotEmpty(t, started.TaskID)

	var task TaskInfo
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/tasks/" + started.TaskID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		task = TaskInfo{}
		if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
			return false
		}
		return task.Status == TaskStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotNil(t, task.FinishedAt)
	assert.Empty(t, task.Error)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/tasks/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := &Server{}
	h := s.RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestSearchRequestDecoding(t *testing.T) {
	var req SearchRequest
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(`  "raw query"`)).Decode(&req))
	assert.Equal(t, "raw query", req.Query)

	req = SearchRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"query": "q", "k": 7}`), &req))
	assert.Equal(t, SearchRequest{Query: "q", K: 7}, req)
}

func TestCorpusSyncer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first corpus file"), 0o644))

	svc := newTestService(t)
	cs := NewCorpusSyncer(config.CorpusConfig{Dir: dir, Debounce: 20 * time.Millisecond}, svc)
	ctx := context.Background()

	require.NoError(t, cs.Synchronize(ctx))
	assert.Equal(t, 4, svc.Index().Len())
	require.NoError(t, cs.Synchronize(ctx))
	assert.Equal(t, 4, svc.Index().Len(), "unchanged files are skipped")

	require.NoError(t, cs.Start(ctx))
	defer cs.Stop()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second corpus file"), 0o644))

	require.Eventually(t, func() bool { return cs.Status().Ingested == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.True(t, cs.Status().Watching)
	assert.Equal(t, 5, svc.Index().Len())

	doc, err := svc.Document(ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "second corpus file", doc.Content)
}
