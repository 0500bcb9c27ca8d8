package expreplay

// sumTree maintains a complete binary tree over a fixed number of
// leaves, where each internal node holds the sum of its children.
// It supports O(log n) priority updates and O(log n) lookup of the
// leaf whose cumulative-priority interval contains a given value,
// which is exactly what proportional prioritized sampling needs.
type sumTree struct {
	leaves int
	nodes  []float64 // nodes[leaves-1:] are the leaves
}

// newSumTree returns a sumTree over the given number of leaves, all
// with priority 0
func newSumTree(leaves int) *sumTree {
	return &sumTree{
		leaves: leaves,
		nodes:  make([]float64, 2*leaves-1),
	}
}

// Total returns the sum of all leaf priorities
func (s *sumTree) Total() float64 {
	return s.nodes[0]
}

// Priority returns the priority of the given leaf
func (s *sumTree) Priority(leaf int) float64 {
	return s.nodes[leaf+s.leaves-1]
}

// Update sets the priority of the given leaf, propagating the change
// up to the root
func (s *sumTree) Update(leaf int, priority float64) {
	node := leaf + s.leaves - 1
	delta := priority - s.nodes[node]

	s.nodes[node] = priority
	for node > 0 {
		node = (node - 1) / 2
		s.nodes[node] += delta
	}
}

// Find returns the leaf whose cumulative-priority interval contains
// value, where value must be in [0, Total())
func (s *sumTree) Find(value float64) int {
	node := 0
	for node < s.leaves-1 {
		left := 2*node + 1
		if value < s.nodes[left] {
			node = left
		} else {
			value -= s.nodes[left]
			node = left + 1
		}
	}
	return node - (s.leaves - 1)
}
