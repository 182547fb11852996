package cart

import (
	"fmt"
	"math"
)

// PredictProba returns a copy of the class distribution at the leaf x lands in.
func (t *Tree) PredictProba(x []float64) ([]float64, error) {
	leaf, err := t.leaf(x)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), t.Nodes[leaf].Value...), nil
}

// Predict returns the most probable class for x. Ties resolve to the lowest
// class index.
func (t *Tree) Predict(x []float64) (int, error) {
	proba, err := t.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return Argmax(proba), nil
}

// Argmax returns the index of the largest value, preferring the earliest on ties.
func Argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

func (t *Tree) leaf(x []float64) (int, error) {
	if t == nil || len(t.Nodes) == 0 {
		return 0, ErrEmptyTree
	}
	if len(x) != t.NumFeatures {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), t.NumFeatures)
	}
	id := 0
	for {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return id, nil
		}
		if x[n.Feature] <= n.Threshold {
			id = n.Left
		} else {
			id = n.Right
		}
	}
}

// FeatureImportances returns the normalized weighted impurity decrease
// contributed by each feature. All zeros when the tree is a single leaf.
func (t *Tree) FeatureImportances() []float64 {
	imp := make([]float64, t.NumFeatures)
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			continue
		}
		l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
		imp[n.Feature] += n.WeightedSamples*n.Impurity -
			l.WeightedSamples*l.Impurity -
			r.WeightedSamples*r.Impurity
	}
	total := sum(imp)
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	depth := make([]int, len(t.Nodes))
	deepest := 0
	// Children always follow their parent in the node table.
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			deepest = max(deepest, depth[i])
			continue
		}
		depth[n.Left] = depth[i] + 1
		depth[n.Right] = depth[i] + 1
	}
	return deepest
}

// NumLeaves returns the number of leaf nodes.
func (t *Tree) NumLeaves() int {
	var n int
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Validate checks the structural soundness of a tree read from storage:
// child indices point forward and in range, features are in range and every
// distribution has NumClasses finite entries.
func (t *Tree) Validate() error {
	if t == nil || len(t.Nodes) == 0 {
		return ErrEmptyTree
	}
	if t.NumFeatures < 1 || t.NumClasses < 1 {
		return fmt.Errorf("cart: invalid shape %d features, %d classes", t.NumFeatures, t.NumClasses)
	}
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if len(n.Value) != t.NumClasses {
			return fmt.Errorf("cart: node %d has %d class values, want %d", i, len(n.Value), t.NumClasses)
		}
		for _, v := range n.Value {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("cart: node %d has invalid class value %v", i, v)
			}
		}
		if n.IsLeaf() {
			continue
		}
		if n.Left == Leaf || n.Right == Leaf {
			return fmt.Errorf("cart: node %d has a single child", i)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("cart: node %d has out of order children %d, %d", i, n.Left, n.Right)
		}
		if n.Feature < 0 || n.Feature >= t.NumFeatures {
			return fmt.Errorf("cart: node %d splits on feature %d of %d", i, n.Feature, t.NumFeatures)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("cart: node %d has NaN threshold", i)
		}
	}
	return nil
}
