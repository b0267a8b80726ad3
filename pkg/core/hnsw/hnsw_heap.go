// Package hnsw provides the implementation of the Hierarchical Navigable Small World
// graph algorithm for efficient approximate nearest neighbor search.
//
// This file defines the min-heap and max-heap data structures used during the
// graph traversal and construction phases. They are built on Go's standard
// container/heap package and hold candidates by value.
package hnsw

import (
	"container/heap"

	"github.com/similivec/similivec/pkg/core/types"
)

// minHeap is a min-heap of candidates. The nearest candidate is always at the
// top; it holds the frontier of nodes still to be expanded.
type minHeap []types.Candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(types.Candidate)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap is a max-heap of candidates. The root is the worst of the results
// kept so far, which makes it cheap to evict when a closer node shows up.
type maxHeap []types.Candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[j].Less(h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) { *h = append(*h, x.(types.Candidate)) }

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Peek returns the farthest kept result without removing it.
func (h maxHeap) Peek() types.Candidate { return h[0] }

// newMinHeap creates a new min-heap with a specified initial capacity.
func newMinHeap(capacity int) *minHeap {
	h := make(minHeap, 0, capacity)
	heap.Init(&h)
	return &h
}

// newMaxHeap creates a new max-heap with a specified initial capacity.
func newMaxHeap(capacity int) *maxHeap {
	h := make(maxHeap, 0, capacity)
	heap.Init(&h)
	return &h
}
