package search

import (
	"time"

	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/docstore"
)

// Hit is the best matching chunk of one document.
type Hit struct {
	NodeID     uint32            `json:"node_id"`
	DocumentID string            `json:"document_id"`
	Similarity float64           `json:"similarity"`
	Distance   float64           `json:"distance"`
	Document   docstore.Document `json:"document"`
}

// Response is the result of a query: one hit per document, most similar
// first, plus the query's position in the current projection when known.
type Response struct {
	QueryPosition []float32           `json:"query_position"`
	Documents     []docstore.Document `json:"documents"`
	ResultNodeIDs []uint32            `json:"result_node_ids"`
	Results       []Hit               `json:"results"`
}

// ProjectedNode is a graph node placed in the low-dimensional view.
type ProjectedNode struct {
	ID            uint32    `json:"id"`
	DocumentID    string    `json:"document_id"`
	Content       string    `json:"content"`
	ReducedVector []float32 `json:"reduced_vector"`
}

// IndexReport summarizes an indexing run.
type IndexReport struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Stats describes the service state.
type Stats struct {
	Index     hnsw.Stats `json:"index"`
	Documents int        `json:"documents"`
	Mapped    int        `json:"mapped_nodes"`
}
