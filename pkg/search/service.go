// Package search ties the graph index to documents: it chunks and embeds
// documents into the index, answers text queries with per-document hits and
// produces the 3D projections of the graph.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/core/text"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/embeddings"
	"github.com/similivec/similivec/pkg/metrics"
	"github.com/similivec/similivec/pkg/projection"
)

var (
	ErrEmptyQuery       = errors.New("search: query cannot be empty")
	ErrNotEnoughNodes   = errors.New("search: at least two indexed chunks are needed for a projection")
	ErrProjectionAbsent = errors.New("search: umap projection is not configured")
)

const (
	DefaultK          = 5
	DefaultKnnK       = 15
	embedConcurrency  = 4
	defaultComponents = projection.DefaultComponents
)

// Options configures a Service.
type Options struct {
	Index hnsw.Config
	// Seed drives level sampling. 0 seeds from the clock.
	Seed    int64
	Chunker text.Chunker
	// UMAP is optional; without it the UMAP views return ErrProjectionAbsent.
	UMAP          *projection.UMAPClient
	UMAPEpochs    int
	KnnK          int
	PCAComponents int
}

// Service is safe for concurrent use. Writers (indexing) are serialized;
// searches run against the current index while a full reindex builds a new
// one in the background.
type Service struct {
	embedder embeddings.Embedder
	store    docstore.Store
	opts     Options

	// writeMu serializes everything that inserts into the graph.
	writeMu sync.Mutex
	// rng is only used inside Index.Insert, under the index write lock.
	rng *rand.Rand

	mu     sync.RWMutex
	index  *hnsw.Index
	mapper *docstore.Mapper

	projMu     sync.RWMutex
	pca        *projection.PCA
	pcaParams  projection.Params
	umapCoords map[uint32][]float32
}

// New creates a service with an empty index. Call IndexAll to index the
// documents already in the store.
func New(store docstore.Store, embedder embeddings.Embedder, opts Options) (*Service, error) {
	if opts.Chunker == nil {
		opts.Chunker = func(s string) []text.Chunk { return text.ParagraphChunker(s, text.DefaultChunkSize) }
	}
	if opts.KnnK <= 0 {
		opts.KnnK = DefaultKnnK
	}
	if opts.PCAComponents <= 0 {
		opts.PCAComponents = defaultComponents
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	idx, err := hnsw.New(opts.Index)
	if err != nil {
		return nil, err
	}
	return &Service{
		embedder: embedder,
		store:    store,
		opts:     opts,
		rng:      rand.New(rand.NewSource(seed)),
		index:    idx,
		mapper:   docstore.NewMapper(),
	}, nil
}

func (s *Service) current() (*hnsw.Index, *docstore.Mapper) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index, s.mapper
}

// Index returns the live graph.
func (s *Service) Index() *hnsw.Index {
	idx, _ := s.current()
	return idx
}

func (s *Service) embed(ctx context.Context, kind embeddings.Kind, input string) ([]float32, error) {
	start := time.Now()
	vec, err := embeddings.EmbedAs(ctx, s.embedder, kind, input)
	metrics.EmbeddingDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("embed").Inc()
		return nil, err
	}
	return vec, nil
}

// IndexAll rebuilds the graph from every stored document and swaps it in
// when done. Projections computed on the old graph are discarded.
func (s *Service) IndexAll(ctx context.Context) (IndexReport, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	docs, err := s.store.All(ctx)
	if err != nil {
		return IndexReport{}, fmt.Errorf("list documents: %w", err)
	}

	idx, err := hnsw.New(s.opts.Index)
	if err != nil {
		return IndexReport{}, err
	}
	mapper := docstore.NewMapper()

	report := IndexReport{}
	for _, doc := range docs {
		n, err := s.indexDocument(ctx, idx, mapper, doc)
		if err != nil {
			return report, fmt.Errorf("index document %q: %w", doc.ID, err)
		}
		report.Documents++
		if n == 0 {
			report.Skipped++
		}
		report.Chunks += n
	}
	report.Duration = time.Since(start)

	s.mu.Lock()
	s.index, s.mapper = idx, mapper
	s.mu.Unlock()
	s.resetProjections()

	metrics.TotalVectors.Set(float64(idx.Len()))
	metrics.TotalDocuments.Set(float64(len(docs)))
	slog.Info("index rebuilt",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"skipped", report.Skipped,
		"duration", report.Duration)
	return report, nil
}

// indexDocument chunks doc, embeds the non-blank chunks in parallel and
// inserts them in chunk order. It returns the number of nodes added. When an
// insert fails the chunks before it stay in the graph and the mapper, and the
// count returned with the error says how many.
func (s *Service) indexDocument(ctx context.Context, idx *hnsw.Index, mapper *docstore.Mapper, doc docstore.Document) (int, error) {
	var chunks []string
	for _, c := range s.opts.Chunker(doc.Content) {
		if strings.TrimSpace(c.Content) != "" {
			chunks = append(chunks, c.Content)
		}
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := s.embed(gctx, embeddings.Passage, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for i, vec := range vectors {
		id := mapper.NextID()
		start := time.Now()
		err := idx.Insert(&hnsw.Node{ID: id, Vector: vec}, s.rng)
		metrics.IndexOperationDuration.WithLabelValues("insert").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ErrorsTotal.WithLabelValues("insert").Inc()
			return i, fmt.Errorf("chunk %d: %w", i, err)
		}
		mapper.Map(id, doc.ID)
	}
	return len(vectors), nil
}

// AddDocument stores doc and, when indexChunks is set, adds its chunks to the
// live graph. An empty id is replaced by a generated one, which is returned.
// On an indexing error the count is the number of chunks that did reach the
// graph.
func (s *Service) AddDocument(ctx context.Context, doc docstore.Document, indexChunks bool) (string, int, error) {
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = uuid.NewString()
	}
	if err := doc.Validate(); err != nil {
		return "", 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Put(ctx, doc); err != nil {
		return "", 0, fmt.Errorf("save document: %w", err)
	}
	if n, err := s.store.Len(ctx); err == nil {
		metrics.TotalDocuments.Set(float64(n))
	}
	if !indexChunks {
		return doc.ID, 0, nil
	}

	idx, mapper := s.current()
	n, err := s.indexDocument(ctx, idx, mapper, doc)
	if n > 0 {
		metrics.TotalVectors.Set(float64(idx.Len()))
		s.resetProjections()
	}
	if err != nil {
		return doc.ID, n, fmt.Errorf("index document %q: %w", doc.ID, err)
	}
	slog.Info("document added", "id", doc.ID, "chunks", n)
	return doc.ID, n, nil
}

// IngestFile loads a corpus file and adds it unless the stored copy already
// has the same content.
func (s *Service) IngestFile(ctx context.Context, doc docstore.Document) (int, error) {
	if prev, err := s.store.Get(ctx, doc.ID); err == nil && prev.Content == doc.Content {
		return 0, nil
	}
	_, n, err := s.AddDocument(ctx, doc, true)
	return n, err
}

// Search embeds the query, finds the k nearest chunks and collapses them to
// one hit per document, keeping each document's most similar chunk.
func (s *Service) Search(ctx context.Context, query string, k int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultK
	}

	qvec, err := s.embed(ctx, embeddings.Query, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx, mapper := s.current()
	start := time.Now()
	candidates, err := idx.Search(qvec, k, 0)
	metrics.IndexOperationDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("search").Inc()
		return nil, err
	}

	best := make(map[string]Hit, len(candidates))
	for _, c := range candidates {
		docID, ok := mapper.DocumentOf(c.ID)
		if !ok {
			continue
		}
		doc, err := s.store.Get(ctx, docID)
		if err != nil {
			continue
		}
		sim := 1 - c.Distance
		if math.IsNaN(sim) {
			sim = 0
		}
		h := Hit{NodeID: c.ID, DocumentID: docID, Similarity: sim, Distance: c.Distance, Document: doc}
		if prev, ok := best[docID]; !ok || h.Similarity > prev.Similarity {
			best[docID] = h
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return int(a.NodeID) - int(b.NodeID)
	})

	resp := &Response{
		Documents:     make([]docstore.Document, len(hits)),
		ResultNodeIDs: make([]uint32, len(hits)),
		Results:       hits,
	}
	for i, h := range hits {
		resp.Documents[i] = h.Document
		resp.ResultNodeIDs[i] = h.NodeID
	}
	resp.QueryPosition = s.pcaPosition(qvec)
	return resp, nil
}

// Documents lists the stored documents.
func (s *Service) Documents(ctx context.Context) ([]docstore.Document, error) {
	return s.store.All(ctx)
}

// Document returns one stored document.
func (s *Service) Document(ctx context.Context, id string) (docstore.Document, error) {
	return s.store.Get(ctx, id)
}

// KnnMatrix exposes the graph's k-nearest-neighbor table.
func (s *Service) KnnMatrix(ctx context.Context, k int) (*hnsw.KnnMatrix, error) {
	if k <= 0 {
		k = s.opts.KnnK
	}
	idx, _ := s.current()
	start := time.Now()
	m, err := idx.KnnMatrix(ctx, k, 0)
	metrics.IndexOperationDuration.WithLabelValues("knn").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	slog.Debug("knn matrix computed", "rows", m.Len(), "k", k, "duration", time.Since(start))
	return m, nil
}

// Stats reports the graph and document counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	idx, mapper := s.current()
	n, err := s.store.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Index: idx.Stats(), Documents: n, Mapped: mapper.Len()}, nil
}

func (s *Service) resetProjections() {
	s.projMu.Lock()
	defer s.projMu.Unlock()
	s.pca = nil
	s.pcaParams = projection.Params{}
	s.umapCoords = nil
}

// attach resolves the document of every projected node.
func (s *Service) attach(ctx context.Context, mapper *docstore.Mapper, ids []uint32, coords [][]float32) []ProjectedNode {
	nodes := make([]ProjectedNode, len(ids))
	for i, id := range ids {
		nodes[i] = ProjectedNode{ID: id, ReducedVector: coords[i]}
		docID, ok := mapper.DocumentOf(id)
		if !ok {
			continue
		}
		nodes[i].DocumentID = docID
		if doc, err := s.store.Get(ctx, docID); err == nil {
			nodes[i].Content = doc.Content
		}
	}
	return nodes
}
