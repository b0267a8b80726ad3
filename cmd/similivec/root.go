package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/similivec/similivec/internal/config"
	"github.com/similivec/similivec/internal/logging"
	"github.com/similivec/similivec/pkg/core/distance"
	"github.com/similivec/similivec/pkg/core/text"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/embeddings"
	"github.com/similivec/similivec/pkg/projection"
	"github.com/similivec/similivec/pkg/rag"
	"github.com/similivec/similivec/pkg/search"
)

var (
	configPath string
	logLevel   string
	corpusDir  string
)

var rootCmd = &cobra.Command{
	Use:   "similivec",
	Short: "SimiliVec - semantic search over a document corpus",
	Long: `SimiliVec indexes documents in an in-memory HNSW graph and answers
semantic queries over them. It can also project the graph to 3D with PCA
or an external UMAP service for visualization.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&corpusDir, "corpus", "", "Corpus directory to ingest (overrides corpus.dir)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration file, applies the global flags and
// installs the logger. Logs go to stderr so command output stays clean.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if corpusDir != "" {
		cfg.Corpus.Dir = corpusDir
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if _, err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app is the assembled service and the resources it owns.
type app struct {
	cfg   config.Config
	store docstore.Store
	svc   *search.Service
}

func newApp(cfg config.Config) (*app, error) {
	store, err := docstore.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	embedder, err := embeddings.New(cfg.Embedder)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	chunker, err := text.NewChunker(cfg.Chunker.Strategy, cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := search.Options{
		Index:         cfg.Index.Config,
		Seed:          cfg.Index.Seed,
		Chunker:       chunker,
		UMAPEpochs:    cfg.Projection.UMAPEpochs,
		KnnK:          cfg.Projection.KnnK,
		PCAComponents: cfg.Projection.PCAComponents,
	}
	if cfg.Projection.UMAPURL != "" {
		opts.UMAP = projection.NewUMAPClient(cfg.Projection.UMAPURL, cfg.Projection.UMAPTimeout)
	}
	svc, err := search.New(store, embedder, opts)
	if err != nil {
		store.Close()
		return nil, err
	}

	slog.Debug("service assembled",
		"embedder", cfg.Embedder.Type,
		"store", cfg.Store.Type,
		"distance_engine", distance.Engine())
	return &app{cfg: cfg, store: store, svc: svc}, nil
}

// build stores the corpus directory, if any, and indexes every stored document.
func (a *app) build(ctx context.Context) (search.IndexReport, error) {
	if dir := a.cfg.Corpus.Dir; dir != "" {
		docs, err := rag.LoadDir(ctx, dir, a.cfg.Corpus.Include)
		if err != nil {
			return search.IndexReport{}, err
		}
		for _, doc := range docs {
			if err := a.store.Put(ctx, doc); err != nil {
				return search.IndexReport{}, fmt.Errorf("store %s: %w", doc.ID, err)
			}
		}
		slog.Info("corpus loaded", "dir", dir, "documents", len(docs))
	}
	return a.svc.IndexAll(ctx)
}

func (a *app) Close() error {
	return a.store.Close()
}

// setup is loadConfig + newApp + build, shared by the one-shot commands.
func setup(ctx context.Context) (*app, search.IndexReport, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, search.IndexReport{}, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, search.IndexReport{}, err
	}
	report, err := a.build(ctx)
	if err != nil {
		a.Close()
		return nil, report, err
	}
	return a, report, nil
}
