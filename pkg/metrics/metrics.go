package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global metrics, registered on the default registry through promauto.

var (
	// HttpRequestsTotal counts requests by method, route pattern and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "similivec_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures server response time. The buckets reach
	// into minutes because UMAP projections run that long on large corpora.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similivec_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	// TotalVectors tracks the number of nodes in the graph.
	TotalVectors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "similivec_vectors_total",
			Help: "Total number of indexed vectors",
		},
	)

	// TotalDocuments tracks the number of stored documents.
	TotalDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "similivec_documents_total",
			Help: "Total number of stored documents",
		},
	)

	// IndexOperationDuration times the graph operations (insert, search, knn).
	IndexOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similivec_index_operation_duration_seconds",
			Help:    "Duration of index operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		},
		[]string{"operation"},
	)

	// EmbeddingDuration times calls to the embedder, by kind (query, passage).
	EmbeddingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similivec_embedding_duration_seconds",
			Help:    "Duration of embedding calls in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"kind"},
	)

	// ErrorsTotal counts failed operations by stage.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "similivec_errors_total",
			Help: "Total number of failed operations",
		},
		[]string{"stage"},
	)
)
