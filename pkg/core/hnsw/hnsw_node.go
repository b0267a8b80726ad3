// Package hnsw provides the implementation of the Hierarchical Navigable Small World
// graph algorithm for efficient approximate nearest neighbor search.
//
// This file defines the Node struct, which is the fundamental building block of the
// HNSW graph. Each node represents a vector and its connections to other nodes
// across multiple layers.
package hnsw

import "slices"

// Node represents a single node within the HNSW graph.
//
// Nodes live in an id-keyed arena owned by the Index; neighbor lists store ids,
// never pointers, so the graph has no reference cycles.
type Node struct {
	// ID is stable, assigned once by the caller and never reused.
	ID uint32
	// Vector is written once. The index keeps the slice as given; callers must
	// not modify it after Insert.
	Vector []float32
	// Level is the highest layer the node participates in. It is assigned by
	// Insert; any value set by the caller is overwritten.
	Level int
	// Neighbors holds one adjacency list per layer, Neighbors[0] being the base
	// layer. len(Neighbors[l]) never exceeds the index's M.
	Neighbors [][]uint32

	// norm caches the L2 norm of Vector for the cosine hot path.
	norm float64
}

// clone returns a deep copy of the node safe to hand out of the index.
func (n *Node) clone() Node {
	c := Node{
		ID:        n.ID,
		Vector:    slices.Clone(n.Vector),
		Level:     n.Level,
		Neighbors: make([][]uint32, len(n.Neighbors)),
		norm:      n.norm,
	}
	for l, ns := range n.Neighbors {
		c.Neighbors[l] = slices.Clone(ns)
	}
	return c
}
