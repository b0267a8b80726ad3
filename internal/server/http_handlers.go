package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/similivec/similivec/pkg/core/distance"
	"github.com/similivec/similivec/pkg/core/hnsw"
	"github.com/similivec/similivec/pkg/docstore"
	"github.com/similivec/similivec/pkg/embeddings"
	"github.com/similivec/similivec/pkg/projection"
	"github.com/similivec/similivec/pkg/search"
)

const maxBodyBytes = 32 << 20

// registerHTTPHandlers sets up the REST routes.
func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/index", s.handleIndex)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)

	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/search/umap", s.handleSearchUMAP)

	mux.HandleFunc("GET /api/nodes/pca", s.handlePCANodes)
	mux.HandleFunc("GET /api/nodes/umap", s.handleUMAPNodes)
	mux.HandleFunc("GET /api/knn", s.handleKnn)

	mux.HandleFunc("POST /api/documents", s.handleAddDocument)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id...}", s.handleGetDocument)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Service.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := StatsResponse{Stats: stats, Engine: distance.Engine()}
	if s.corpus != nil {
		st := s.corpus.Status()
		resp.Corpus = &st
	}
	s.writeHTTPResponse(w, http.StatusOK, resp)
}

// handleIndex starts a full rebuild in the background and returns its task id.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	task := s.taskManager.Run(func(t *Task) (any, error) {
		t.SetProgress("indexing stored documents")
		// The rebuild outlives the request.
		return s.Service.IndexAll(context.Background())
	})
	slog.Info("reindex task started", "task_id", task.ID)
	s.writeHTTPResponse(w, http.StatusAccepted, TaskResponse{TaskID: task.ID})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.taskManager.GetTask(r.PathValue("id"))
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, task.Snapshot())
}

// decodeSearch reads the query from the body and k from the query string,
// which wins over a k in the body.
func (s *Server) decodeSearch(w http.ResponseWriter, r *http.Request) (SearchRequest, bool) {
	var req SearchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 {
			s.writeHTTPError(w, http.StatusBadRequest, "k must be a positive integer")
			return req, false
		}
		req.K = k
	}
	return req, true
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}
	resp, err := s.Service.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, resp)
}

func (s *Server) handleSearchUMAP(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}
	resp, err := s.Service.SearchUMAP(r.Context(), req.Query, req.K)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, resp)
}

func (s *Server) handlePCANodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Service.PCANodes(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, NodesResponse{Nodes: nodes})
}

func (s *Server) handleUMAPNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Service.UMAPNodes(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, NodesResponse{Nodes: nodes})
}

func (s *Server) handleKnn(w http.ResponseWriter, r *http.Request) {
	k := s.knnK
	if raw := r.URL.Query().Get("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.writeHTTPError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = v
	}
	m, err := s.Service.KnnMatrix(r.Context(), k)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, m)
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req AddDocumentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}
	index := req.Index == nil || *req.Index

	doc := docstore.Document{ID: req.ID, Content: req.Content, Metadata: req.Metadata}
	id, n, err := s.Service.AddDocument(r.Context(), doc, index)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusCreated, AddDocumentResponse{
		ID:     id,
		Chunks: n,
		Nodes:  s.Service.NodesOf(id),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.Service.Documents(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Service.Document(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, doc)
}

func decodeBody(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrNotEnoughNodes),
		errors.Is(err, docstore.ErrInvalidDocument),
		errors.Is(err, embeddings.ErrEmptyText),
		errors.Is(err, hnsw.ErrInvalidK),
		errors.Is(err, hnsw.ErrInvalidVector),
		errors.Is(err, hnsw.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, search.ErrProjectionAbsent),
		errors.Is(err, projection.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	s.writeHTTPError(w, status, err.Error())
}

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, ErrorResponse{Error: message})
}
