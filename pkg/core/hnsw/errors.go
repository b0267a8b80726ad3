package hnsw

import (
	"errors"

	"github.com/similivec/similivec/pkg/core/distance"
)

var (
	// ErrNilNode is returned when Insert receives no node.
	ErrNilNode = errors.New("hnsw: nil node")
	// ErrNilRand is returned when Insert receives no random source.
	ErrNilRand = errors.New("hnsw: nil random source")
	// ErrInvalidVector marks an empty vector or one with NaN/Inf components.
	ErrInvalidVector = errors.New("hnsw: invalid vector")
	// ErrDimensionMismatch is shared with the distance package so callers can
	// test for either with errors.Is.
	ErrDimensionMismatch = distance.ErrDimensionMismatch
	// ErrDuplicateID is returned when a node id is already in the graph.
	ErrDuplicateID = errors.New("hnsw: duplicate node id")
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("hnsw: invalid config")
	// ErrInvalidK is returned by KnnMatrix for a non-positive neighbor count.
	ErrInvalidK = errors.New("hnsw: k must be positive")
)
