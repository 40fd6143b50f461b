package xgboost

// Node represents a single node in a boosted regression tree
type Node struct {
	LeftChild  int // Left child node ID (-1 if leaf)
	RightChild int // Right child node ID (-1 if leaf)

	// Split information (for non-leaf nodes)
	Feature   int     // Feature index used for splitting
	Threshold float64 // samples with x <= Threshold go left
	Gain      float64 // Loss reduction of the split

	// Leaf information (for leaf nodes), learning rate already applied
	LeafValue float64

	SumHess float64 // cover
	Count   int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one boosting round.
type Tree struct {
	Nodes []Node
}

// Predict returns the leaf value for one sample.
func (t *Tree) Predict(features []float64) float64 {
	n := &t.Nodes[0]
	for !n.IsLeaf() {
		if features[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.LeftChild]
		} else {
			n = &t.Nodes[n.RightChild]
		}
	}
	return n.LeafValue
}

// NumLeaves counts the leaves of the tree.
func (t *Tree) NumLeaves() int {
	c := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			c++
		}
	}
	return c
}
