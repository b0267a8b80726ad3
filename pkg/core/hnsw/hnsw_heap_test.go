package hnsw

import (
	"container/heap"
	"testing"

	"github.com/similivec/similivec/pkg/core/types"
	"github.com/stretchr/testify/assert"
)

func TestMinHeapCorrectness(t *testing.T) {
	candidates := []types.Candidate{
		{ID: 1, Distance: 5.0},
		{ID: 4, Distance: 2.0},
		{ID: 3, Distance: 8.0},
		{ID: 2, Distance: 2.0}, // same distance as id 4, id breaks the tie
	}

	h := newMinHeap(len(candidates))
	for _, c := range candidates {
		heap.Push(h, c)
	}

	expected := []uint32{2, 4, 1, 3}
	for i, want := range expected {
		c := heap.Pop(h).(types.Candidate)
		assert.Equal(t, want, c.ID, "pop %d", i)
	}
}

func TestMaxHeapCorrectness(t *testing.T) {
	candidates := []types.Candidate{
		{ID: 1, Distance: 5.0},
		{ID: 2, Distance: 8.0},
		{ID: 3, Distance: 2.0},
		{ID: 4, Distance: 8.0},
	}

	h := newMaxHeap(len(candidates))
	for _, c := range candidates {
		heap.Push(h, c)
	}
	assert.Equal(t, uint32(4), h.Peek().ID)

	expected := []uint32{4, 2, 1, 3}
	for i, want := range expected {
		c := heap.Pop(h).(types.Candidate)
		assert.Equal(t, want, c.ID, "pop %d", i)
	}
}
