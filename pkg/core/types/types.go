// Package types holds the small value types shared between the graph index
// and the packages built on top of it.
package types

// Candidate is a node id paired with its distance to a query. Search results
// are returned as candidates ordered nearest first.
type Candidate struct {
	ID       uint32  `json:"id"`
	Distance float64 `json:"distance"`
}

// Less orders candidates by distance, breaking ties by id so that every
// ordering built on it is total and therefore deterministic.
func (c Candidate) Less(o Candidate) bool {
	if c.Distance != o.Distance {
		return c.Distance < o.Distance
	}
	return c.ID < o.ID
}

// CompareCandidates is Less in the three-way form expected by slices.SortFunc.
func CompareCandidates(a, b Candidate) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
