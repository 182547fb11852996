// Package cart implements a CART decision tree classifier with weighted gini
// splitting.
//
// Trees are stored as a flat node table so they serialize to JSON without
// recursion and can be validated before use.
package cart

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Leaf marks an absent child index.
const Leaf = -1

var (
	// ErrEmptyTree is returned when predicting with a tree that has no nodes.
	ErrEmptyTree = errors.New("cart: empty tree")

	// ErrFeatureCount is returned when an input row has the wrong width.
	ErrFeatureCount = errors.New("cart: feature count mismatch")
)

// Node is one entry in the tree's node table. Internal nodes send rows with
// x[Feature] <= Threshold to Left and the rest to Right. Leaves have both
// children set to Leaf.
type Node struct {
	Feature         int       `json:"feature"`
	Threshold       float64   `json:"threshold"`
	Left            int       `json:"left"`
	Right           int       `json:"right"`
	Value           []float64 `json:"value"`
	Samples         int       `json:"samples"`
	WeightedSamples float64   `json:"weighted_samples"`
	Impurity        float64   `json:"impurity"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left == Leaf && n.Right == Leaf }

// Tree is a fitted classifier. Node 0 is the root and Value holds the
// class-weighted class distribution at each node, normalized to sum to 1.
type Tree struct {
	NumFeatures int    `json:"num_features"`
	NumClasses  int    `json:"num_classes"`
	Nodes       []Node `json:"nodes"`
}

// Params controls tree growth. MaxDepth <= 0 means unlimited.
type Params struct {
	MaxDepth        int       `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	ClassWeight     []float64 `json:"class_weight,omitempty" yaml:"-"`
}

// BalancedWeights returns n / (k * count_c) for each class, the weighting that
// makes every class contribute equal total weight. Absent classes get 0.
func BalancedWeights(y []int, nClasses int) []float64 {
	counts := make([]int, nClasses)
	for _, c := range y {
		if c >= 0 && c < nClasses {
			counts[c]++
		}
	}
	w := make([]float64, nClasses)
	for c, n := range counts {
		if n > 0 {
			w[c] = float64(len(y)) / (float64(nClasses) * float64(n))
		}
	}
	return w
}

// Fit grows a tree on X with integer labels y in [0, nClasses).
//
// Growth is deterministic: candidate splits are scanned by feature index then
// threshold, and a later candidate only replaces the current best when its
// impurity decrease is strictly larger.
func Fit(X [][]float64, y []int, nClasses int, p Params) (*Tree, error) {
	if len(X) == 0 {
		return nil, errors.New("cart: empty training set")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("cart: %d rows but %d labels", len(X), len(y))
	}
	if nClasses < 1 {
		return nil, fmt.Errorf("cart: invalid class count %d", nClasses)
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return nil, errors.New("cart: rows have no features")
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureCount, i, len(row), nFeatures)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("cart: row %d feature %d is not finite", i, j)
			}
		}
		if y[i] < 0 || y[i] >= nClasses {
			return nil, fmt.Errorf("cart: row %d label %d out of range", i, y[i])
		}
	}

	weights := p.ClassWeight
	if weights == nil {
		weights = make([]float64, nClasses)
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != nClasses {
		return nil, fmt.Errorf("cart: %d class weights for %d classes", len(weights), nClasses)
	}

	minSplit := max(p.MinSamplesSplit, 2)
	minLeaf := max(p.MinSamplesLeaf, 1)

	b := &builder{
		X:        X,
		y:        y,
		weights:  weights,
		classes:  nClasses,
		maxDepth: p.MaxDepth,
		minSplit: minSplit,
		minLeaf:  minLeaf,
		tree:     &Tree{NumFeatures: nFeatures, NumClasses: nClasses},
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	b.build(idx, 0)

	return b.tree, nil
}

type builder struct {
	X        [][]float64
	y        []int
	weights  []float64
	classes  int
	maxDepth int
	minSplit int
	minLeaf  int
	tree     *Tree
}

type split struct {
	feature     int
	threshold   float64
	improvement float64
}

func (b *builder) build(idx []int, depth int) int {
	counts := b.weightedCounts(idx)
	total := sum(counts)
	impurity := gini(counts, total)

	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:         Leaf,
		Left:            Leaf,
		Right:           Leaf,
		Value:           normalize(counts, total),
		Samples:         len(idx),
		WeightedSamples: total,
		Impurity:        impurity,
	})

	if b.maxDepth > 0 && depth >= b.maxDepth {
		return id
	}
	if len(idx) < b.minSplit || len(idx) < 2*b.minLeaf || impurity <= 1e-12 {
		return id
	}

	best, ok := b.bestSplit(idx, counts, total, impurity)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	n := &b.tree.Nodes[id]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	return id
}

func (b *builder) bestSplit(idx []int, parent []float64, total, impurity float64) (split, bool) {
	var best split
	found := false

	sorted := make([]int, len(idx))
	leftCounts := make([]float64, b.classes)
	rightCounts := make([]float64, b.classes)

	for f := 0; f < b.tree.NumFeatures; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})
		if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
			continue
		}

		clear(leftCounts)
		copy(rightCounts, parent)
		var wl float64

		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			w := b.weights[b.y[i]]
			leftCounts[b.y[i]] += w
			rightCounts[b.y[i]] -= w
			wl += w

			v, next := b.X[i][f], b.X[sorted[pos+1]][f]
			if v == next {
				continue
			}
			nl := pos + 1
			nr := len(sorted) - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}

			wr := total - wl
			if wl <= 0 || wr <= 0 {
				continue
			}
			child := (wl*gini(leftCounts, wl) + wr*gini(rightCounts, wr)) / total
			improvement := impurity - child
			if improvement <= 1e-12 || (found && improvement <= best.improvement) {
				continue
			}

			threshold := v/2 + next/2
			if threshold >= next || math.IsInf(threshold, 0) {
				threshold = v
			}
			best = split{feature: f, threshold: threshold, improvement: improvement}
			found = true
		}
	}
	return best, found
}

func (b *builder) weightedCounts(idx []int) []float64 {
	counts := make([]float64, b.classes)
	for _, i := range idx {
		counts[b.y[i]] += b.weights[b.y[i]]
	}
	return counts
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

func normalize(counts []float64, total float64) []float64 {
	out := make([]float64, len(counts))
	if total <= 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
