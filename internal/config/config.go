// Package config loads the similivec configuration file.
//
// The file is YAML. Environment variables are expanded before parsing, so
// secrets can be written as ${OPENAI_API_KEY}. Unknown keys are rejected to
// catch typos early.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/core/text"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/embeddings"
	"github.com/similivec/similivec/pkg/projection"
	"github.com/similivec/similivec/pkg/textanalyzer"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Index      IndexConfig       `yaml:"index"`
	Embedder   embeddings.Config `yaml:"embedder"`
	Chunker    ChunkerConfig     `yaml:"chunker"`
	Store      docstore.Config   `yaml:"store"`
	Corpus     CorpusConfig      `yaml:"corpus"`
	Projection ProjectionConfig  `yaml:"projection"`
	Log        LogConfig         `yaml:"log"`
	MCP        MCPConfig         `yaml:"mcp"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AuthToken protects /api when set. Clients send it as a Bearer token.
	AuthToken    string        `yaml:"auth_token"`
	CORSOrigin   string        `yaml:"cors_origin"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// IndexConfig is the graph configuration plus the seed of the level sampler.
// A zero seed draws one from the clock.
type IndexConfig struct {
	hnsw.Config `yaml:",inline"`
	Seed        int64 `yaml:"seed"`
}

type ChunkerConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type CorpusConfig struct {
	Dir      string        `yaml:"dir"`
	Watch    bool          `yaml:"watch"`
	Include  []string      `yaml:"include"`
	Debounce time.Duration `yaml:"debounce"`
}

type ProjectionConfig struct {
	// UMAPURL enables the UMAP views. Empty disables them.
	UMAPURL       string        `yaml:"umap_url"`
	UMAPEpochs    int           `yaml:"umap_epochs"`
	UMAPTimeout   time.Duration `yaml:"umap_timeout"`
	KnnK          int           `yaml:"knn_k"`
	PCAComponents int           `yaml:"pca_components"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration that runs fully offline: hash embeddings,
// in-memory documents and no UMAP service.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			CORSOrigin:   "*",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Index: IndexConfig{Config: hnsw.DefaultConfig()},
		Embedder: embeddings.Config{
			Type:      embeddings.TypeHash,
			Dimension: embeddings.DefaultDimension,
			Timeout:   60 * time.Second,
			CacheSize: 1024,
		},
		Chunker: ChunkerConfig{
			Strategy:  text.StrategyParagraph,
			ChunkSize: text.DefaultChunkSize,
		},
		Store: docstore.Config{Type: docstore.TypeMemory},
		Corpus: CorpusConfig{
			Debounce: 500 * time.Millisecond,
		},
		Projection: ProjectionConfig{
			UMAPEpochs:    projection.DefaultUMAPEpochs,
			UMAPTimeout:   2 * time.Minute,
			KnnK:          15,
			PCAComponents: projection.DefaultComponents,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg, keeping the values of absent keys.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if strings.TrimSpace(expanded) == "" {
		return nil
	}
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

// Validate reports every impossible value at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if err := c.Index.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Addr == "" {
		bad("server.addr is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		bad("server timeouts must not be negative")
	}

	switch c.Embedder.Type {
	case embeddings.TypeHash:
		if c.Embedder.Dimension <= 0 {
			bad("embedder.dimension must be positive for the hash embedder")
		}
		if _, err := textanalyzer.ForLanguage(c.Embedder.Language); err != nil {
			bad("embedder.language: %v", err)
		}
	case embeddings.TypeOllama, embeddings.TypeOpenAI:
		if c.Embedder.Model == "" {
			bad("embedder.model is required for %q", c.Embedder.Type)
		}
	default:
		bad("unknown embedder.type %q", c.Embedder.Type)
	}
	if c.Embedder.CacheSize < 0 || c.Embedder.RateLimit < 0 || c.Embedder.Burst < 0 {
		bad("embedder cache_size, rate_limit and burst must not be negative")
	}

	if _, err := text.NewChunker(c.Chunker.Strategy, c.Chunker.ChunkSize, c.Chunker.ChunkOverlap); err != nil {
		bad("chunker: %v", err)
	}

	switch c.Store.Type {
	case docstore.TypeMemory:
	case docstore.TypeJSON, docstore.TypeSQLite, docstore.TypeLog:
		if c.Store.Path == "" {
			bad("store.path is required for %q", c.Store.Type)
		}
	default:
		bad("unknown store.type %q", c.Store.Type)
	}

	if c.Corpus.Watch && c.Corpus.Dir == "" {
		bad("corpus.watch needs corpus.dir")
	}
	if c.Projection.KnnK < 1 {
		bad("projection.knn_k must be at least 1")
	}
	if c.Projection.PCAComponents < 1 {
		bad("projection.pca_components must be at least 1")
	}
	if c.Projection.UMAPEpochs < 0 {
		bad("projection.umap_epochs must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		bad("unknown log.format %q", c.Log.Format)
	}
	return errors.Join(errs...)
}
