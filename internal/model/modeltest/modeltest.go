// Package modeltest provides a small hand-built classifier with known
// outcomes for tests in packages that consume a model.
package modeltest

import (
	"testing"

	"github.com/linnemanlabs/medtriage/internal/cart"
	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/model"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// TrainingID is the run ID stamped on the fixture classifier.
const TrainingID = "01JBZ5T3K3X4GQ9W0M8N6V2C7R"

// Leaf distributions in urgency.Levels order.
var (
	EmergencyLeaf = []float64{0.9, 0.1, 0, 0}
	HighLeaf      = []float64{0.1, 0.7, 0.15, 0.05}
	MediumLeaf    = []float64{0.05, 0.15, 0.6, 0.2}
	LowLeaf       = []float64{0, 0, 0.05, 0.95}
)

// Tree returns a four-leaf tree over features.Columns:
//
//	chest_pain > 0.5          -> emergency
//	routine > 0.5             -> low
//	pain_level > 6.5          -> high
//	otherwise                 -> medium
func Tree() *cart.Tree {
	col := func(name string) int {
		for i, c := range features.Columns {
			if c == name {
				return i
			}
		}
		panic("modeltest: unknown column " + name)
	}
	leaf := func(v []float64, n int) cart.Node {
		return cart.Node{
			Feature: cart.Leaf, Left: cart.Leaf, Right: cart.Leaf,
			Value: append([]float64(nil), v...), Samples: n, WeightedSamples: float64(n),
		}
	}
	split := func(f int, th float64, l, r, n int, imp float64) cart.Node {
		return cart.Node{
			Feature: f, Threshold: th, Left: l, Right: r,
			Value: []float64{0.25, 0.25, 0.25, 0.25}, Samples: n, WeightedSamples: float64(n), Impurity: imp,
		}
	}

	return &cart.Tree{
		NumFeatures: features.NumFeatures,
		NumClasses:  len(urgency.Levels),
		Nodes: []cart.Node{
			split(col("chest_pain"), 0.5, 1, 6, 100, 0.75),
			split(col("routine"), 0.5, 2, 5, 75, 0.6),
			split(col("pain_level"), 6.5, 3, 4, 50, 0.5),
			leaf(MediumLeaf, 25),
			leaf(HighLeaf, 25),
			leaf(LowLeaf, 25),
			leaf(EmergencyLeaf, 25),
		},
	}
}

// Classifier wraps Tree as a loaded model.
func Classifier(tb testing.TB) *model.Classifier {
	tb.Helper()

	c, err := model.New(TrainingID, Tree(), cart.Params{MaxDepth: 3, MinSamplesSplit: 2, MinSamplesLeaf: 5}, urgency.Levels)
	if err != nil {
		tb.Fatalf("modeltest: %v", err)
	}
	return c
}
