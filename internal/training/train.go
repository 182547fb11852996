package training

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/medtriage/internal/cart"
	"github.com/linnemanlabs/medtriage/internal/model"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// Importance is one feature column's share of the tree's impurity decrease.
type Importance struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// Report describes a finished training run.
type Report struct {
	TrainingID   string                    `json:"training_id"`
	Rows         int                       `json:"rows"`
	TrainRows    int                       `json:"train_rows"`
	TestRows     int                       `json:"test_rows"`
	ClassCounts  map[urgency.Level]int     `json:"class_counts"`
	ClassWeights map[urgency.Level]float64 `json:"class_weights"`
	Params       cart.Params               `json:"params"`
	Depth        int                       `json:"depth"`
	Leaves       int                       `json:"leaves"`
	Test         *Metrics                  `json:"test"`
	CV           *CVResult                 `json:"cv,omitempty"`
	Importances  []Importance              `json:"importances"`
	Duration     time.Duration             `json:"duration"`
}

// Result is a trained classifier with its evaluation report.
type Result struct {
	Classifier *model.Classifier
	Report     *Report
}

// Train splits ds, fits a class-balanced tree on the training rows, scores it
// on the held-out rows and, when c.CVFolds > 0, cross-validates on the whole
// dataset. Cross-validation is reported only and does not affect the model.
func Train(ctx context.Context, ds *Dataset, c Config) (*Result, error) {
	L := log.FromContext(ctx)
	start := time.Now()

	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	train, test, err := StratifiedSplit(ds, c.TestSize, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	L.Info(ctx, "split dataset", "rows", ds.Len(), "train_rows", train.Len(), "test_rows", test.Len())

	X, y := train.Matrix()
	k := len(urgency.Levels)
	weights := cart.BalancedWeights(y, k)
	params := cart.Params{
		MaxDepth:        c.MaxDepth,
		MinSamplesSplit: c.MinSamplesSplit,
		MinSamplesLeaf:  c.MinSamplesLeaf,
		ClassWeight:     weights,
	}

	tree, err := cart.Fit(X, y, k, params)
	if err != nil {
		return nil, fmt.Errorf("fit tree: %w", err)
	}
	L.Info(ctx, "fit tree", "depth", tree.Depth(), "leaves", tree.NumLeaves(), "nodes", len(tree.Nodes))

	testMetrics, err := Evaluate(tree, test)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	var cv *CVResult
	if c.CVFolds > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cvParams := params
		cvParams.ClassWeight = nil
		cv, err = CrossValidate(ds, c.CVFolds, cvParams)
		if err != nil {
			return nil, fmt.Errorf("cross-validate: %w", err)
		}
	}

	id := ulid.Make().String()
	clf, err := model.New(id, tree, params, urgency.Levels)
	if err != nil {
		return nil, fmt.Errorf("wrap model: %w", err)
	}

	rep := &Report{
		TrainingID:   id,
		Rows:         ds.Len(),
		TrainRows:    train.Len(),
		TestRows:     test.Len(),
		ClassCounts:  ds.Counts(),
		ClassWeights: make(map[urgency.Level]float64, k),
		Params:       params,
		Depth:        tree.Depth(),
		Leaves:       tree.NumLeaves(),
		Test:         testMetrics,
		CV:           cv,
		Duration:     time.Since(start),
	}
	for i, lvl := range urgency.Levels {
		rep.ClassWeights[lvl] = weights[i]
	}
	for col, v := range clf.FeatureImportances() {
		rep.Importances = append(rep.Importances, Importance{Column: col, Value: v})
	}
	sort.SliceStable(rep.Importances, func(i, j int) bool {
		if rep.Importances[i].Value != rep.Importances[j].Value {
			return rep.Importances[i].Value > rep.Importances[j].Value
		}
		return rep.Importances[i].Column < rep.Importances[j].Column
	})

	L.Info(ctx, "training complete",
		"training_id", id,
		"test_accuracy", testMetrics.Accuracy,
		"duration", rep.Duration,
	)
	return &Result{Classifier: clf, Report: rep}, nil
}
