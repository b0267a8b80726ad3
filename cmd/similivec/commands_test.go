package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/similivec/similivec/internal/config"
	"github.com/similivec/similivec/internal/server"
	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/embeddings"
	"github.com/similivec/similivec/pkg/search"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"birds.txt":     "birds migrate south for the winter",
		"baking.md":     "knead the dough and let it rise overnight",
		"astronomy.txt": "telescopes reveal distant galaxies",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath, logLevel, corpusDir = "", "", ""
		searchK, searchJSON = search.DefaultK, false
		searchServer, searchToken = "", ""
		knnK, indexVerify = 0, false
	})
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCommandsAreRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "index", "search", "knn"})

	f := searchCmd.Flags().Lookup("k")
	require.NotNil(t, f)
	assert.Equal(t, "5", f.DefValue)
}

func TestIndexCommand(t *testing.T) {
	out := run(t, "index", "--corpus", writeCorpus(t), "--verify", "--log-level", "error")

	var got struct {
		Report search.IndexReport `json:"report"`
		Stats  search.Stats       `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Report.Documents)
	assert.Equal(t, 3, got.Stats.Index.Nodes)
	assert.Equal(t, 3, got.Stats.Documents)
}

func TestSearchCommand(t *testing.T) {
	out := run(t, "search", "--corpus", writeCorpus(t), "--json", "-k", "2", "--log-level", "error", "distant", "galaxies")

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "astronomy.txt", resp.Results[0].DocumentID)

	out = run(t, "search", "--corpus", writeCorpus(t), "--log-level", "error", "dough")
	assert.Contains(t, out, "1. baking.md")
}

func TestSearchCommandRemote(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, docstore.Document{ID: "remote.txt", Content: "lighthouses guide ships at night"}))
	svc, err := search.New(store, embeddings.NewHashEmbedder(64), search.Options{Index: hnsw.DefaultConfig(), Seed: 5})
	require.NoError(t, err)
	_, err = svc.IndexAll(ctx)
	require.NoError(t, err)
	ts := httptest.NewServer(server.NewServer(svc, config.ServerConfig{AuthToken: "tok"}).Handler())
	defer ts.Close()

	out := run(t, "search", "--server", ts.URL, "--token", "tok", "lighthouses")
	assert.Contains(t, out, "1. remote.txt")
}

func TestKnnCommand(t *testing.T) {
	out := run(t, "knn", "--corpus", writeCorpus(t), "-k", "1", "--log-level", "error")

	var m hnsw.KnnMatrix
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Len(t, m.IDs, 3)
	assert.Equal(t, 1, m.K)
	for _, row := range m.Indices {
		assert.Len(t, row, 1)
	}
}

func TestConfigErrorsSurface(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  m: -3\n"), 0o644))

	rootCmd.SetArgs([]string{"index", "-c", path})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { configPath = "" })
	assert.Error(t, rootCmd.Execute())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview(" a\n b\t\tc "))
	long := bytes.Repeat([]byte("x"), snippetLength+5)
	assert.Len(t, preview(string(long)), snippetLength+3)
}
