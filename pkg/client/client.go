// Package client is a Go client for the similivec HTTP API.
//
// It covers search (plain and UMAP), document ingestion and lookup, the
// projection views, the k-NN matrix and background reindexing. Errors
// returned by the server are surfaced as *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/search"
)

// APIError is an error answered by the server (status >= 400).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Stats is the body of /api/stats.
type Stats struct {
	search.Stats
	Engine string `json:"distance_engine"`
}

// AddedDocument describes a document accepted by AddDocument.
type AddedDocument struct {
	ID     string   `json:"id"`
	Chunks int      `json:"chunks"`
	Nodes  []uint32 `json:"nodes"`
}

// Task is a background operation on the server, such as a reindex.
type Task struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	ProgressMessage string          `json:"progress_message,omitempty"`
	Error           string          `json:"error,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`

	client *Client
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the server at baseURL, e.g.
// "http://localhost:8080". token is sent as a Bearer token when not empty.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// jsonRequest sends payload, when not nil, as JSON and decodes the reply
// into out, when not nil.
func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health returns nil when the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := c.jsonRequest(ctx, http.MethodGet, "/api/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Search returns up to k documents for query. k <= 0 leaves the server default.
func (c *Client) Search(ctx context.Context, query string, k int) (*search.Response, error) {
	return c.search(ctx, "/api/search", query, k)
}

// SearchUMAP is Search with the query placed in the UMAP view.
func (c *Client) SearchUMAP(ctx context.Context, query string, k int) (*search.Response, error) {
	return c.search(ctx, "/api/search/umap", query, k)
}

func (c *Client) search(ctx context.Context, endpoint, query string, k int) (*search.Response, error) {
	payload := map[string]any{"query": query}
	if k > 0 {
		payload["k"] = k
	}
	var resp search.Response
	if err := c.jsonRequest(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddDocument stores doc and, when index is true, adds its chunks to the
// graph. An empty doc.ID is assigned by the server.
func (c *Client) AddDocument(ctx context.Context, doc docstore.Document, index bool) (*AddedDocument, error) {
	payload := map[string]any{
		"id":       doc.ID,
		"content":  doc.Content,
		"metadata": doc.Metadata,
		"index":    index,
	}
	var added AddedDocument
	if err := c.jsonRequest(ctx, http.MethodPost, "/api/documents", payload, &added); err != nil {
		return nil, err
	}
	return &added, nil
}

func (c *Client) Documents(ctx context.Context) ([]docstore.Document, error) {
	var resp struct {
		Documents []docstore.Document `json:"documents"`
	}
	if err := c.jsonRequest(ctx, http.MethodGet, "/api/documents", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *Client) Document(ctx context.Context, id string) (*docstore.Document, error) {
	var doc docstore.Document
	if err := c.jsonRequest(ctx, http.MethodGet, "/api/documents/"+escapeID(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// escapeID escapes every path segment of id, keeping the slashes.
func escapeID(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *Client) PCANodes(ctx context.Context) ([]search.ProjectedNode, error) {
	return c.nodes(ctx, "/api/nodes/pca")
}

func (c *Client) UMAPNodes(ctx context.Context) ([]search.ProjectedNode, error) {
	return c.nodes(ctx, "/api/nodes/umap")
}

func (c *Client) nodes(ctx context.Context, endpoint string) ([]search.ProjectedNode, error) {
	var resp struct {
		Nodes []search.ProjectedNode `json:"nodes"`
	}
	if err := c.jsonRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

// Knn returns the k-NN matrix of the index. k <= 0 leaves the server default.
func (c *Client) Knn(ctx context.Context, k int) (*hnsw.KnnMatrix, error) {
	endpoint := "/api/knn"
	if k > 0 {
		endpoint += "?k=" + strconv.Itoa(k)
	}
	var m hnsw.KnnMatrix
	if err := c.jsonRequest(ctx, http.MethodGet, endpoint, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Reindex starts a rebuild of the index from the stored documents.
func (c *Client) Reindex(ctx context.Context) (*Task, error) {
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := c.jsonRequest(ctx, http.MethodPost, "/api/index", nil, &resp); err != nil {
		return nil, err
	}
	return &Task{ID: resp.TaskID, Status: "started", client: c}, nil
}

func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*Task, error) {
	var t Task
	if err := c.jsonRequest(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, &t); err != nil {
		return nil, err
	}
	t.client = c
	return &t, nil
}

// Refresh updates the task from the server.
func (t *Task) Refresh(ctx context.Context) error {
	if t.client == nil {
		return errors.New("client is not associated with the task")
	}
	updated, err := t.client.GetTaskStatus(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Status = updated.Status
	t.ProgressMessage = updated.ProgressMessage
	t.Error = updated.Error
	t.Result = updated.Result
	return nil
}

// Wait polls the task every interval until it completes, fails or ctx ends.
func (t *Task) Wait(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for task %s: %w", t.ID, ctx.Err())
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				return err
			}
			switch t.Status {
			case "completed":
				return nil
			case "failed":
				return fmt.Errorf("task %s failed with error: %s", t.ID, t.Error)
			case "running", "started":
			default:
				return fmt.Errorf("unknown task status: %s", t.Status)
			}
		}
	}
}
