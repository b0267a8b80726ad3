package docstore

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// Mapper hands out node ids and remembers which document each node (chunk)
// came from. The reverse direction is kept as one bitmap per document.
type Mapper struct {
	next atomic.Uint32

	mu        sync.RWMutex
	nodeToDoc map[uint32]string
	docNodes  map[string]*roaring.Bitmap
}

func NewMapper() *Mapper {
	return &Mapper{
		nodeToDoc: make(map[uint32]string),
		docNodes:  make(map[string]*roaring.Bitmap),
	}
}

// NextID returns a fresh node id. Ids start at 1 and are never reused.
func (m *Mapper) NextID() uint32 {
	return m.next.Add(1)
}

// Map records that nodeID holds a chunk of docID.
func (m *Mapper) Map(nodeID uint32, docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.nodeToDoc[nodeID]; ok && prev != docID {
		m.docNodes[prev].Remove(nodeID)
	}
	m.nodeToDoc[nodeID] = docID
	bm, ok := m.docNodes[docID]
	if !ok {
		bm = roaring.New()
		m.docNodes[docID] = bm
	}
	bm.Add(nodeID)
}

// DocumentOf returns the document a node belongs to.
func (m *Mapper) DocumentOf(nodeID uint32) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.nodeToDoc[nodeID]
	return id, ok
}

// NodesOf returns the node ids of a document in ascending order.
func (m *Mapper) NodesOf(docID string) []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bm, ok := m.docNodes[docID]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// Len returns the number of mapped nodes.
func (m *Mapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodeToDoc)
}
