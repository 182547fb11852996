package training

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/linnemanlabs/medtriage/internal/cart"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// ClassMetrics holds one urgency level's scores on a labeled set.
type ClassMetrics struct {
	Level     urgency.Level `json:"level"`
	Precision float64       `json:"precision"`
	Recall    float64       `json:"recall"`
	F1        float64       `json:"f1"`
	Support   int           `json:"support"`
}

// Metrics summarizes predictions against true labels. Confusion is indexed
// [actual][predicted] in urgency.Levels order.
type Metrics struct {
	Accuracy       float64        `json:"accuracy"`
	Correct        int            `json:"correct"`
	Total          int            `json:"total"`
	PerClass       []ClassMetrics `json:"per_class"`
	MacroPrecision float64        `json:"macro_precision"`
	MacroRecall    float64        `json:"macro_recall"`
	MacroF1        float64        `json:"macro_f1"`
	Confusion      [][]int        `json:"confusion"`
}

// Score computes accuracy, per-class precision, recall and F1, their macro
// averages and the confusion matrix. Labels index urgency.Levels.
func Score(yTrue, yPred []int) (*Metrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, errors.New("no labels to score")
	}

	k := len(urgency.Levels)
	m := &Metrics{Total: len(yTrue), Confusion: make([][]int, k)}
	for i := range m.Confusion {
		m.Confusion[i] = make([]int, k)
	}
	for i := range yTrue {
		a, p := yTrue[i], yPred[i]
		if a < 0 || a >= k || p < 0 || p >= k {
			return nil, fmt.Errorf("label out of range at %d: actual %d, predicted %d", i, a, p)
		}
		m.Confusion[a][p]++
		if a == p {
			m.Correct++
		}
	}
	m.Accuracy = float64(m.Correct) / float64(m.Total)

	for c, lvl := range urgency.Levels {
		tp := m.Confusion[c][c]
		var fp, fn int
		for o := range k {
			if o == c {
				continue
			}
			fn += m.Confusion[c][o]
			fp += m.Confusion[o][c]
		}

		cm := ClassMetrics{Level: lvl, Support: tp + fn}
		if tp+fp > 0 {
			cm.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			cm.Recall = float64(tp) / float64(tp+fn)
		}
		if cm.Precision+cm.Recall > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		m.PerClass = append(m.PerClass, cm)

		m.MacroPrecision += cm.Precision
		m.MacroRecall += cm.Recall
		m.MacroF1 += cm.F1
	}
	m.MacroPrecision /= float64(k)
	m.MacroRecall /= float64(k)
	m.MacroF1 /= float64(k)

	return m, nil
}

// Evaluate predicts every row of d with tree and scores the result.
func Evaluate(tree *cart.Tree, d *Dataset) (*Metrics, error) {
	X, y := d.Matrix()
	pred := make([]int, len(X))
	for i, x := range X {
		p, err := tree.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("predict row %d: %w", i, err)
		}
		pred[i] = p
	}
	return Score(y, pred)
}

// CVResult holds per-fold accuracies and their mean and population standard
// deviation.
type CVResult struct {
	Folds []float64 `json:"folds"`
	Mean  float64   `json:"mean"`
	Std   float64   `json:"std"`
}

// CrossValidate fits a fresh tree per stratified fold, with balanced class
// weights recomputed on each fold's training rows, and reports held-out
// accuracy.
func CrossValidate(d *Dataset, k int, p cart.Params) (*CVResult, error) {
	X, y := d.Matrix()
	folds, err := StratifiedFolds(y, k)
	if err != nil {
		return nil, err
	}

	res := &CVResult{Folds: make([]float64, 0, k)}
	for f, testIdx := range folds {
		if len(testIdx) == 0 {
			return nil, fmt.Errorf("fold %d is empty", f)
		}
		inTest := make(map[int]bool, len(testIdx))
		for _, i := range testIdx {
			inTest[i] = true
		}

		var trX [][]float64
		var trY []int
		for i := range X {
			if !inTest[i] {
				trX = append(trX, X[i])
				trY = append(trY, y[i])
			}
		}

		fp := p
		fp.ClassWeight = cart.BalancedWeights(trY, len(urgency.Levels))
		tree, err := cart.Fit(trX, trY, len(urgency.Levels), fp)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}

		m, err := Evaluate(tree, d.subset(testIdx))
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		res.Folds = append(res.Folds, m.Accuracy)
	}

	mean, variance := stat.PopMeanVariance(res.Folds, nil)
	res.Mean = mean
	res.Std = math.Sqrt(variance)
	return res, nil
}
