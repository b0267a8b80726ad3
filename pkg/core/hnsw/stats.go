package hnsw

import (
	"errors"
	"fmt"
)

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Level      int     `json:"level"`
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	MeanDegree float64 `json:"mean_degree"`
	MaxDegree  int     `json:"max_degree"`
}

// Stats is a point-in-time summary of the graph.
type Stats struct {
	Nodes      int          `json:"nodes"`
	Dimension  int          `json:"dimension"`
	MaxLevel   int          `json:"max_level"`
	EntryPoint uint32       `json:"entry_point"`
	Levels     []LevelStats `json:"levels"`
	Config     Config       `json:"config"`
}

// Stats walks every node and aggregates per-layer counts.
func (h *Index) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		Nodes:      len(h.nodes),
		Dimension:  h.dim,
		MaxLevel:   h.maxLevel,
		EntryPoint: h.entrypointID,
		Config:     h.Config(),
	}
	if h.maxLevel < 0 {
		return s
	}

	s.Levels = make([]LevelStats, h.maxLevel+1)
	for l := range s.Levels {
		s.Levels[l].Level = l
	}
	for _, n := range h.nodes {
		for l, neighbors := range n.Neighbors {
			ls := &s.Levels[l]
			ls.Nodes++
			ls.Edges += len(neighbors)
			ls.MaxDegree = max(ls.MaxDegree, len(neighbors))
		}
	}
	for l := range s.Levels {
		if s.Levels[l].Nodes > 0 {
			s.Levels[l].MeanDegree = float64(s.Levels[l].Edges) / float64(s.Levels[l].Nodes)
		}
	}
	return s
}

// Verify checks the structural invariants of the graph and returns every
// violation found, joined. A nil result means the graph is well formed.
func (h *Index) Verify() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 {
		return nil
	}

	var errs []error
	ep, ok := h.nodes[h.entrypointID]
	switch {
	case !ok:
		errs = append(errs, fmt.Errorf("entry point %d is not in the graph", h.entrypointID))
	case ep.Level != h.maxLevel:
		errs = append(errs, fmt.Errorf("entry point %d has level %d, max level is %d", ep.ID, ep.Level, h.maxLevel))
	}

	for id, n := range h.nodes {
		if n.Level > h.maxLevel {
			errs = append(errs, fmt.Errorf("node %d has level %d above max level %d", id, n.Level, h.maxLevel))
		}
		if len(n.Neighbors) != n.Level+1 {
			errs = append(errs, fmt.Errorf("node %d has %d neighbor lists for level %d", id, len(n.Neighbors), n.Level))
		}
		for l, neighbors := range n.Neighbors {
			if len(neighbors) > h.m {
				errs = append(errs, fmt.Errorf("node %d has %d neighbors at layer %d, limit is %d", id, len(neighbors), l, h.m))
			}
			for _, nid := range neighbors {
				if nid == id {
					errs = append(errs, fmt.Errorf("node %d links to itself at layer %d", id, l))
					continue
				}
				nb, ok := h.nodes[nid]
				if !ok {
					errs = append(errs, fmt.Errorf("node %d links to unknown node %d at layer %d", id, nid, l))
					continue
				}
				if nb.Level < l {
					errs = append(errs, fmt.Errorf("node %d links to node %d at layer %d above its level %d", id, nid, l, nb.Level))
				}
			}
		}
	}
	return errors.Join(errs...)
}
