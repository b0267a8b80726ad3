// Package hnsw provides the implementation of the Hierarchical Navigable Small World
// (HNSW) graph algorithm for efficient approximate nearest neighbor search.
//
// This package contains the core Index struct and its associated methods for building,
// searching, and inspecting the graph. Nodes are stored in an arena keyed by id and
// compared with cosine distance. The index is add-only.
package hnsw

import (
	"container/heap"
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/similivec/similivec/pkg/core/distance"
	"github.com/similivec/similivec/pkg/core/types"
)

// Index represents the hierarchical graph structure.
type Index struct {
	// Insert takes the write lock; every read path takes the read lock.
	mu sync.RWMutex

	// HNSW algorithm parameters
	m              int // Max number of connections per node per layer
	efConstruction int // Size of the dynamic candidate list during insertion
	efSearch       int // Default query beam width, 0 means efConstruction
	ml             float64

	// entrypointID is the node every top-down search starts from. Its level
	// always equals maxLevel.
	entrypointID uint32
	maxLevel     int
	// dim is learned from the first insert.
	dim int
	// maxID tracks the largest id seen, used to size the visited bitset.
	maxID uint32

	nodes map[uint32]*Node

	visitedPool sync.Pool
	minHeapPool sync.Pool
	maxHeapPool sync.Pool
}

// New creates and initializes a new HNSW index.
func New(cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	h := &Index{
		m:              cfg.M,
		efConstruction: cfg.EfConstruction,
		efSearch:       cfg.EfSearch,
		ml:             cfg.ML,
		maxLevel:       -1, // No levels initially
		nodes:          make(map[uint32]*Node),
	}

	h.visitedPool = sync.Pool{
		New: func() any { return NewBitSet(256) },
	}
	h.minHeapPool = sync.Pool{
		New: func() any { return newMinHeap(cfg.EfConstruction) },
	}
	h.maxHeapPool = sync.Pool{
		New: func() any { return newMaxHeap(cfg.EfConstruction) },
	}

	return h, nil
}

// query carries a vector together with its cached norm.
type query struct {
	vec  []float32
	norm float64
}

func newQuery(v []float32) query {
	return query{vec: v, norm: distance.Norm(v)}
}

func (q query) distanceTo(n *Node) float64 {
	return distance.CosineWithNorms(q.vec, n.Vector, q.norm, n.norm)
}

func checkVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	if !distance.IsFinite(v) {
		return fmt.Errorf("%w: vector has NaN or Inf components", ErrInvalidVector)
	}
	return nil
}

// Insert adds a node to the graph and links it into every layer up to a
// randomly sampled level. The node's Level and Neighbors are assigned here.
//
// On error the index is left unchanged.
func (h *Index) Insert(node *Node, rng *rand.Rand) error {
	if node == nil {
		return ErrNilNode
	}
	if rng == nil {
		return fmt.Errorf("insert node %d: %w", node.ID, ErrNilRand)
	}
	if err := checkVector(node.Vector); err != nil {
		return fmt.Errorf("insert node %d: %w", node.ID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dim != 0 && len(node.Vector) != h.dim {
		return fmt.Errorf("insert node %d: %w: got %d, index has %d",
			node.ID, ErrDimensionMismatch, len(node.Vector), h.dim)
	}
	if _, exists := h.nodes[node.ID]; exists {
		return fmt.Errorf("insert node %d: %w", node.ID, ErrDuplicateID)
	}

	node.norm = distance.Norm(node.Vector)

	// First node: it becomes the entry point of an otherwise empty graph.
	if len(h.nodes) == 0 {
		node.Level = 0
		node.Neighbors = [][]uint32{make([]uint32, 0, h.m)}
		h.nodes[node.ID] = node
		h.entrypointID = node.ID
		h.maxLevel = 0
		h.dim = len(node.Vector)
		h.maxID = node.ID
		return nil
	}

	level := SampleLevel(rng, h.ml)
	node.Level = level
	node.Neighbors = make([][]uint32, level+1)
	for l := range node.Neighbors {
		node.Neighbors[l] = make([]uint32, 0, h.m)
	}
	h.nodes[node.ID] = node
	h.maxID = max(h.maxID, node.ID)

	q := query{vec: node.Vector, norm: node.norm}
	currentEntry := h.entrypointID

	// 1. Top-down greedy phase: find the best entry point for the new node's level.
	for l := h.maxLevel; l > level; l-- {
		if nearest := h.searchLayer(q, currentEntry, l, 1); len(nearest) > 0 {
			currentEntry = nearest[0].ID
		}
	}

	// 2. Bottom-up phase: link the node on every layer it shares with the graph.
	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(q, currentEntry, l, h.efConstruction)

		candidateIDs := make([]uint32, 0, len(candidates))
		for _, c := range candidates {
			candidateIDs = append(candidateIDs, c.ID)
		}
		selected := h.selectNeighbors(node, candidateIDs, h.m)
		node.Neighbors[l] = append(node.Neighbors[l], selected...)

		for _, neighborID := range selected {
			neighbor := h.nodes[neighborID]
			if l >= len(neighbor.Neighbors) {
				continue
			}
			neighbor.Neighbors[l] = append(neighbor.Neighbors[l], node.ID)
			if len(neighbor.Neighbors[l]) > h.m {
				h.shrink(neighbor, l)
			}
		}

		if len(candidates) > 0 {
			currentEntry = candidates[0].ID
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entrypointID = node.ID
	}
	return nil
}

// shrink re-selects an over-full neighbor list at the given layer.
// Pruned nodes keep their own edge back to n; only n's side is rewritten.
func (h *Index) shrink(n *Node, layer int) {
	n.Neighbors[layer] = h.selectNeighbors(n, n.Neighbors[layer], h.m)
}

// Search returns up to k nodes nearest to the query vector, nearest first.
//
// efSearch <= 0 uses the index default. An empty index yields an empty result.
func (h *Index) Search(vec []float32, k, efSearch int) ([]types.Candidate, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.searchUnlocked(vec, k, efSearch)
}

// SearchIDs is Search reduced to node ids.
func (h *Index) SearchIDs(vec []float32, k, efSearch int) ([]uint32, error) {
	results, err := h.Search(vec, k, efSearch)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}

// searchUnlocked performs the search without taking the lock. The caller
// must hold at least the read lock.
func (h *Index) searchUnlocked(vec []float32, k, efSearch int) ([]types.Candidate, error) {
	if len(h.nodes) == 0 || k <= 0 {
		return []types.Candidate{}, nil
	}
	if err := checkVector(vec); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(vec) != h.dim {
		return nil, fmt.Errorf("search: %w: got %d, index has %d", ErrDimensionMismatch, len(vec), h.dim)
	}

	q := newQuery(vec)
	currentEntry := h.entrypointID
	for l := h.maxLevel; l > 0; l-- {
		if nearest := h.searchLayer(q, currentEntry, l, 1); len(nearest) > 0 {
			currentEntry = nearest[0].ID
		}
	}

	ef := h.resolveEf(efSearch)
	if ef < k {
		ef = k
	}
	results := h.searchLayer(q, currentEntry, 0, ef)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (h *Index) resolveEf(efSearch int) int {
	switch {
	case efSearch > 0:
		return efSearch
	case h.efSearch > 0:
		return h.efSearch
	default:
		return h.efConstruction
	}
}

func (h *Index) acquireVisited() visitedSet {
	if h.maxID >= denseIDLimit {
		return make(sparseSet)
	}
	bs := h.visitedPool.Get().(*BitSet)
	bs.EnsureCapacity(h.maxID)
	return bs
}

func (h *Index) releaseVisited(v visitedSet) {
	if bs, ok := v.(*BitSet); ok {
		bs.Clear()
		h.visitedPool.Put(bs)
	}
}

// searchLayer runs a best-first beam search on a single layer starting from
// entryID and returns at most ef candidates, nearest first.
func (h *Index) searchLayer(q query, entryID uint32, layer, ef int) []types.Candidate {
	if ef < 1 {
		ef = 1
	}
	entry, ok := h.nodes[entryID]
	if !ok {
		return nil
	}

	visited := h.acquireVisited()
	defer h.releaseVisited(visited)

	candidates := h.minHeapPool.Get().(*minHeap)
	*candidates = (*candidates)[:0]
	defer h.minHeapPool.Put(candidates)

	results := h.maxHeapPool.Get().(*maxHeap)
	*results = (*results)[:0]
	defer h.maxHeapPool.Put(results)

	start := types.Candidate{ID: entryID, Distance: q.distanceTo(entry)}
	visited.Visit(entryID)
	heap.Push(candidates, start)
	heap.Push(results, start)

	for candidates.Len() > 0 {
		current := heap.Pop(candidates).(types.Candidate)

		// Lower bound: nothing left in the frontier can improve a full result set.
		if results.Len() >= ef && current.Distance > results.Peek().Distance {
			break
		}

		currentNode := h.nodes[current.ID]
		if layer >= len(currentNode.Neighbors) {
			continue
		}

		for _, neighborID := range currentNode.Neighbors[layer] {
			if !visited.Visit(neighborID) {
				continue
			}
			neighbor, ok := h.nodes[neighborID]
			if !ok {
				continue
			}

			c := types.Candidate{ID: neighborID, Distance: q.distanceTo(neighbor)}
			if results.Len() < ef || c.Less(results.Peek()) {
				heap.Push(candidates, c)
				heap.Push(results, c)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]types.Candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(types.Candidate)
	}
	return out
}

// selectNeighbors picks up to limit neighbors for anchor from candidateIDs
// using the diversity heuristic, then fills any remaining slots with the
// closest candidates that were skipped.
func (h *Index) selectNeighbors(anchor *Node, candidateIDs []uint32, limit int) []uint32 {
	sorted := make([]types.Candidate, 0, len(candidateIDs))
	seen := make(map[uint32]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		if id == anchor.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n, ok := h.nodes[id]
		if !ok {
			continue
		}
		sorted = append(sorted, types.Candidate{
			ID:       id,
			Distance: distance.CosineWithNorms(anchor.Vector, n.Vector, anchor.norm, n.norm),
		})
	}
	slices.SortFunc(sorted, types.CompareCandidates)

	selected := make([]uint32, 0, limit)
	picked := make([]bool, len(sorted))

	for i, c := range sorted {
		if len(selected) >= limit {
			break
		}
		cn := h.nodes[c.ID]
		diverse := true
		for _, sid := range selected {
			sn := h.nodes[sid]
			if distance.CosineWithNorms(cn.Vector, sn.Vector, cn.norm, sn.norm) < c.Distance {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c.ID)
			picked[i] = true
		}
	}

	// Fill pass: keep connectivity when the heuristic was too strict.
	for i, c := range sorted {
		if len(selected) >= limit {
			break
		}
		if !picked[i] {
			selected = append(selected, c.ID)
		}
	}
	return selected
}

// Len returns the number of nodes in the graph.
func (h *Index) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Dim returns the vector dimension, 0 before the first insert.
func (h *Index) Dim() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dim
}

// EntryPoint returns the entry point id and the current max level.
// ok is false on an empty index.
func (h *Index) EntryPoint() (id uint32, level int, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.nodes) == 0 {
		return 0, -1, false
	}
	return h.entrypointID, h.maxLevel, true
}

// Node returns a copy of the node with the given id.
func (h *Index) Node(id uint32) (Node, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Contains reports whether id is in the graph.
func (h *Index) Contains(id uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.nodes[id]
	return ok
}

// IDs returns every node id in ascending order.
func (h *Index) IDs() []uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sortedIDsUnlocked()
}

func (h *Index) sortedIDsUnlocked() []uint32 {
	ids := make([]uint32, 0, len(h.nodes))
	for id := range h.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Vectors returns the ids in ascending order together with their vectors.
// The vectors are shared with the index and must not be modified.
func (h *Index) Vectors() ([]uint32, [][]float32) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := h.sortedIDsUnlocked()
	vecs := make([][]float32, len(ids))
	for i, id := range ids {
		vecs[i] = h.nodes[id].Vector
	}
	return ids, vecs
}

// Config returns the resolved parameters of the index.
func (h *Index) Config() Config {
	return Config{
		M:              h.m,
		EfConstruction: h.efConstruction,
		EfSearch:       h.efSearch,
		ML:             h.ml,
	}
}
