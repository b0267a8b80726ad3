package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/search"
)

// maxSnippet caps the document text returned to the model per hit.
const maxSnippet = 2000

type Service struct {
	search *search.Service
}

func NewService(svc *search.Service) *Service {
	return &Service{search: svc}
}

// --- Tool Handlers ---

func (s *Service) Search(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, SearchResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = search.DefaultK
	}
	resp, err := s.search.Search(ctx, args.Query, limit)
	if err != nil {
		return nil, SearchResult{}, err
	}

	out := SearchResult{Results: make([]SearchHit, 0, len(resp.Results))}
	for _, h := range resp.Results {
		out.Results = append(out.Results, SearchHit{
			DocumentID: h.DocumentID,
			Similarity: h.Similarity,
			Content:    snippet(h.Document.Content),
		})
	}
	return nil, out, nil
}

func (s *Service) AddDocument(ctx context.Context, req *mcp.CallToolRequest, args AddDocumentArgs) (*mcp.CallToolResult, AddDocumentResult, error) {
	doc := docstore.Document{ID: args.ID, Content: args.Content, Metadata: args.Metadata}
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}
	doc.Metadata["source"] = "mcp"

	id, n, err := s.search.AddDocument(ctx, doc, true)
	if err != nil {
		return nil, AddDocumentResult{}, fmt.Errorf("add document: %w", err)
	}
	return nil, AddDocumentResult{ID: id, Chunks: n}, nil
}

func (s *Service) Stats(ctx context.Context, req *mcp.CallToolRequest, args StatsArgs) (*mcp.CallToolResult, StatsResult, error) {
	st, err := s.search.Stats(ctx)
	if err != nil {
		return nil, StatsResult{}, err
	}
	out := StatsResult{
		Documents: st.Documents,
		Nodes:     st.Index.Nodes,
		Dimension: st.Index.Dimension,
		MaxLevel:  st.Index.MaxLevel,
	}
	if st.Index.Nodes > 0 {
		ep := st.Index.EntryPoint
		out.EntryPoint = &ep
	}
	return nil, out, nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxSnippet {
		return string(r[:maxSnippet]) + "…"
	}
	return s
}
