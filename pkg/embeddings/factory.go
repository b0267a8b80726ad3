package embeddings

import (
	"fmt"
	"time"

	"github.com/similivec/similivec/pkg/textanalyzer"
)

// Embedder types accepted by New.
const (
	TypeHash   = "hash"
	TypeOllama = "ollama"
	TypeOpenAI = "openai"
)

// Config selects and tunes the embedder.
type Config struct {
	Type      string        `yaml:"type"`
	URL       string        `yaml:"url"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	Dimension int           `yaml:"dimension"`
	// Language drops that language's stop words before hashing. Hash
	// embedder only.
	Language string `yaml:"language"`
	// CacheSize is the number of embeddings kept in memory. 0 disables the cache.
	CacheSize int `yaml:"cache_size"`
	// RateLimit is in requests per second. 0 means unlimited.
	RateLimit     float64 `yaml:"rate_limit"`
	Burst         int     `yaml:"burst"`
	QueryPrefix   string  `yaml:"query_prefix"`
	PassagePrefix string  `yaml:"passage_prefix"`
}

// New builds the embedder described by cfg, wrapped as
// cache(rate limit(prefixes(base))) depending on which options are set.
func New(cfg Config) (Embedder, error) {
	var e Embedder
	switch cfg.Type {
	case "", TypeHash:
		analyzer, err := textanalyzer.ForLanguage(cfg.Language)
		if err != nil {
			return nil, err
		}
		h := NewHashEmbedder(cfg.Dimension)
		h.Analyzer = analyzer
		e = h
	case TypeOllama:
		if cfg.Model == "" {
			return nil, fmt.Errorf("embedder %q requires a model", cfg.Type)
		}
		e = NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Timeout)
	case TypeOpenAI:
		if cfg.Model == "" {
			return nil, fmt.Errorf("embedder %q requires a model", cfg.Type)
		}
		e = NewOpenAIEmbedder(cfg.URL, cfg.Model, cfg.APIKey, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}

	if cfg.QueryPrefix != "" || cfg.PassagePrefix != "" {
		e = &Prefixed{Base: e, QueryPrefix: cfg.QueryPrefix, PassagePrefix: cfg.PassagePrefix}
	}
	if cfg.RateLimit > 0 {
		e = NewRateLimitedEmbedder(e, cfg.RateLimit, cfg.Burst)
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCachedEmbedder(e, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		e = cached
	}
	return e, nil
}
