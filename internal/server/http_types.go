package server

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/similivec/similivec/pkg/search"
)

// SearchRequest is the body of /api/search. A bare JSON string is accepted as
// the query too.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

func (r *SearchRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.Query)
	}
	type plain SearchRequest
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return errors.New("expected a JSON object with a 'query' key or a JSON string")
	}
	*r = SearchRequest(p)
	return nil
}

// AddDocumentRequest is the body of POST /api/documents. The id is generated
// when empty.
type AddDocumentRequest struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// Index defaults to true.
	Index *bool `json:"index,omitempty"`
}

type AddDocumentResponse struct {
	ID     string   `json:"id"`
	Chunks int      `json:"chunks"`
	Nodes  []uint32 `json:"nodes"`
}

type TaskResponse struct {
	TaskID string `json:"task_id"`
}

type NodesResponse struct {
	Nodes []search.ProjectedNode `json:"nodes"`
}

type StatsResponse struct {
	search.Stats
	Engine string       `json:"distance_engine"`
	Corpus *CorpusStatus `json:"corpus,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
