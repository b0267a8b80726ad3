package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Index.M)
	assert.Equal(t, 20, cfg.Index.EfConstruction)
	assert.Equal(t, "hash", cfg.Embedder.Type)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv("SIMILIVEC_TEST_KEY", "sk-secret")
	path := filepath.Join(t.TempDir(), "similivec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:9000"
index:
  m: 8
  ef_search: 64
  seed: 7
embedder:
  type: openai
  model: text-embedding-3-small
  api_key: ${SIMILIVEC_TEST_KEY}
  timeout: 10s
store:
  type: sqlite
  path: docs.db
projection:
  umap_url: http://localhost:8000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Index.M)
	assert.Equal(t, 20, cfg.Index.EfConstruction, "untouched keys keep their default")
	assert.Equal(t, 64, cfg.Index.EfSearch)
	assert.EqualValues(t, 7, cfg.Index.Seed)
	assert.Equal(t, "sk-secret", cfg.Embedder.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Embedder.Timeout)
	assert.Equal(t, "docs.db", cfg.Store.Path)
	assert.Equal(t, 15, cfg.Projection.KnnK)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  mm: 8\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseEmpty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte("  \n"), &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad m", func(c *Config) { c.Index.M = -1 }},
		{"no addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown embedder", func(c *Config) { c.Embedder.Type = "magic" }},
		{"ollama without model", func(c *Config) { c.Embedder.Type = "ollama" }},
		{"hash without dimension", func(c *Config) { c.Embedder.Dimension = 0 }},
		{"bad chunker", func(c *Config) { c.Chunker.Strategy = "sentences" }},
		{"overlap too large", func(c *Config) {
			c.Chunker.Strategy = "fixed"
			c.Chunker.ChunkSize = 10
			c.Chunker.ChunkOverlap = 10
		}},
		{"unknown language", func(c *Config) { c.Embedder.Language = "klingon" }},
		{"recursive overlap too large", func(c *Config) {
			c.Chunker.Strategy = "recursive"
			c.Chunker.ChunkSize = 10
			c.Chunker.ChunkOverlap = 12
		}},
		{"sqlite without path", func(c *Config) { c.Store.Type = "sqlite" }},
		{"log store without path", func(c *Config) { c.Store.Type = "log" }},
		{"watch without dir", func(c *Config) { c.Corpus.Watch = true }},
		{"knn k", func(c *Config) { c.Projection.KnnK = 0 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Projection.KnnK = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "knn_k")
}
