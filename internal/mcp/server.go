// Package mcp exposes the search service as Model Context Protocol tools.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/similivec/similivec/pkg/search"
)

// Version is reported to MCP clients.
var Version = "dev"

func NewMCPServer(svc *search.Service) *mcp.Server {
	service := NewService(svc)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "SimiliVec",
		Version: Version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over the indexed documents. Returns the best matching documents, most similar first.",
	}, service.Search)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "add_document",
		Description: "Store a text document and index it so later searches can find it.",
	}, service.AddDocument)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report the number of documents and graph nodes, the vector dimension and the graph height.",
	}, service.Stats)

	return s
}
