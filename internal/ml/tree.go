package ml

import "sort"

// TreeNode is one node of a regression tree, stored flat so the ensemble
// serializes to a plain JSON artifact. Internal nodes route on
// x[Feature] < Threshold; leaves carry the Newton-step output value.
type TreeNode struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// Tree is a depth-bounded regression tree fit to the boosting residuals.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Leaf {
			return node.Value
		}
		if x[node.Feature] < node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// fitTree grows one regression tree on the gradient/hessian pairs of the
// current boosting round, greedily choosing the split with the best gain.
func fitTree(X [][]float64, grad, hess []float64, indices []int, maxDepth, minLeaf int) Tree {
	t := &Tree{}
	t.grow(X, grad, hess, indices, maxDepth, minLeaf)
	return *t
}

func (t *Tree) grow(X [][]float64, grad, hess []float64, indices []int, depth, minLeaf int) int {
	nodeIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{})

	if depth == 0 || len(indices) < 2*minLeaf {
		t.Nodes[nodeIdx] = leafNode(grad, hess, indices)
		return nodeIdx
	}

	feature, threshold, ok := bestSplit(X, grad, hess, indices, minLeaf)
	if !ok {
		t.Nodes[nodeIdx] = leafNode(grad, hess, indices)
		return nodeIdx
	}

	var left, right []int
	for _, i := range indices {
		if X[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftIdx := t.grow(X, grad, hess, left, depth-1, minLeaf)
	rightIdx := t.grow(X, grad, hess, right, depth-1, minLeaf)
	t.Nodes[nodeIdx] = TreeNode{Feature: feature, Threshold: threshold, Left: leftIdx, Right: rightIdx}
	return nodeIdx
}

// hessFloor keeps leaf values finite when a region's predictions saturate.
const hessFloor = 1e-6

func leafNode(grad, hess []float64, indices []int) TreeNode {
	var g, h float64
	for _, i := range indices {
		g += grad[i]
		h += hess[i]
	}
	if h < hessFloor {
		h = hessFloor
	}
	return TreeNode{Leaf: true, Value: g / h}
}

// bestSplit scans every feature for the threshold with the highest gain,
// defined Newton-style as G_l²/H_l + G_r²/H_r − G²/H. Splits leaving fewer
// than minLeaf rows on either side are rejected.
func bestSplit(X [][]float64, grad, hess []float64, indices []int, minLeaf int) (feature int, threshold float64, ok bool) {
	var totalG, totalH float64
	for _, i := range indices {
		totalG += grad[i]
		totalH += hess[i]
	}
	parentGain := gainTerm(totalG, totalH)

	bestGain := 1e-12 // require strictly positive improvement
	width := len(X[indices[0]])
	order := make([]int, len(indices))

	for f := 0; f < width; f++ {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftG, leftH float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftG += grad[i]
			leftH += hess[i]

			cur, next := X[i][f], X[order[pos+1]][f]
			if cur == next {
				continue
			}
			if pos+1 < minLeaf || len(order)-pos-1 < minLeaf {
				continue
			}

			gain := gainTerm(leftG, leftH) + gainTerm(totalG-leftG, totalH-leftH) - parentGain
			if gain > bestGain {
				bestGain = gain
				feature = f
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func gainTerm(g, h float64) float64 {
	if h < hessFloor {
		h = hessFloor
	}
	return g * g / h
}
