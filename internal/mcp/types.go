package mcp

// --- Tool Arguments ---

type SearchArgs struct {
	Query string `json:"query" jsonschema:"The natural language query to search the corpus for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max number of documents to return (default 5)"`
}

type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

type SearchResult struct {
	Results []SearchHit `json:"results"`
}

type AddDocumentArgs struct {
	ID       string            `json:"id,omitempty" jsonschema:"Document ID. Generated when empty"`
	Content  string            `json:"content" jsonschema:"The text of the document"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"Optional key/value metadata"`
}

type AddDocumentResult struct {
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}

type StatsArgs struct{}

type StatsResult struct {
	Documents  int     `json:"documents"`
	Nodes      int     `json:"nodes"`
	Dimension  int     `json:"dimension"`
	MaxLevel   int     `json:"max_level"`
	EntryPoint *uint32 `json:"entry_point,omitempty"`
}
