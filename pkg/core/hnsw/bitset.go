package hnsw

// denseIDLimit bounds the id range for which a bitset is used to track visited
// nodes. Above it (sparse, caller-chosen ids) a map is cheaper than a bitset
// sized by the largest id.
const denseIDLimit = 1 << 24

// visitedSet records the nodes already expanded during one layer search.
type visitedSet interface {
	// Visit marks n and reports whether it was unvisited before the call.
	Visit(n uint32) bool
	Clear()
}

// BitSet is a growable set of uint32 backed by 64-bit buckets.
type BitSet struct {
	buckets []uint64
}

func NewBitSet(initialCapacity uint32) *BitSet {
	numBuckets := (initialCapacity >> 6) + 1 // >> 6 == / 64
	return &BitSet{
		buckets: make([]uint64, numBuckets),
	}
}

func (bs *BitSet) grow(n uint32) {
	neededBuckets := (n >> 6) + 1
	if uint32(len(bs.buckets)) < neededBuckets {
		newBuckets := make([]uint64, neededBuckets)
		copy(newBuckets, bs.buckets)
		bs.buckets = newBuckets
	}
}

func (bs *BitSet) Add(n uint32) {
	bucketIndex := n >> 6
	if bucketIndex >= uint32(len(bs.buckets)) {
		bs.grow(n)
	}
	// n & 63 == n % 64
	bs.buckets[bucketIndex] |= 1 << (n & 63)
}

func (bs *BitSet) Has(n uint32) bool {
	bucketIndex := n >> 6
	if bucketIndex >= uint32(len(bs.buckets)) {
		return false
	}
	return bs.buckets[bucketIndex]&(1<<(n&63)) != 0
}

func (bs *BitSet) Visit(n uint32) bool {
	if bs.Has(n) {
		return false
	}
	bs.Add(n)
	return true
}

func (bs *BitSet) Clear() {
	clear(bs.buckets)
}

func (bs *BitSet) EnsureCapacity(maxVal uint32) {
	if uint32(len(bs.buckets)) < (maxVal>>6)+1 {
		bs.grow(maxVal)
	}
}

// sparseSet is the visitedSet used when node ids are too spread out for a bitset.
type sparseSet map[uint32]struct{}

func (s sparseSet) Visit(n uint32) bool {
	if _, ok := s[n]; ok {
		return false
	}
	s[n] = struct{}{}
	return true
}

func (s sparseSet) Clear() { clear(s) }
