// Package model wraps a fitted decision tree as the urgency classifier and
// owns its on-disk artifact format.
//
// A trained model is three JSON files written together by one training run:
// the tree with its hyperparameters, the label encoding and the feature column
// order. Each file carries the run's training ID and Load refuses a set whose
// IDs disagree or whose columns differ from features.Columns.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/medtriage/internal/cart"
	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

var (
	// ErrNotLoaded is returned when no usable model is available.
	ErrNotLoaded = errors.New("model not loaded")

	// ErrShapeMismatch is returned when a feature vector or persisted column
	// list does not match what the model was trained on.
	ErrShapeMismatch = errors.New("feature shape mismatch")

	// ErrArtifactMismatch is returned when the artifact files come from
	// different training runs.
	ErrArtifactMismatch = fmt.Errorf("%w: artifacts from different training runs", ErrNotLoaded)
)

// Prediction is the classifier's verdict for one feature vector.
type Prediction struct {
	Urgency      urgency.Level
	Confidence   float64
	Distribution map[urgency.Level]float64
}

// Classifier is an immutable, loaded urgency classifier. It is safe for
// concurrent use.
type Classifier struct {
	trainingID string
	params     cart.Params
	tree       *cart.Tree
	classes    []urgency.Level
	columns    []string
}

// New wraps a fitted tree. classes maps tree class indices to levels and must
// be a permutation of urgency.Levels.
func New(trainingID string, tree *cart.Tree, params cart.Params, classes []urgency.Level) (*Classifier, error) {
	if trainingID == "" {
		return nil, fmt.Errorf("%w: empty training id", ErrNotLoaded)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotLoaded, err)
	}
	if err := checkClasses(classes); err != nil {
		return nil, err
	}
	if tree.NumClasses != len(classes) {
		return nil, fmt.Errorf("%w: tree has %d classes, encoder has %d", ErrNotLoaded, tree.NumClasses, len(classes))
	}
	if tree.NumFeatures != features.NumFeatures {
		return nil, fmt.Errorf("%w: tree expects %d features, extractor produces %d", ErrShapeMismatch, tree.NumFeatures, features.NumFeatures)
	}
	return &Classifier{
		trainingID: trainingID,
		params:     params,
		tree:       tree,
		classes:    append([]urgency.Level(nil), classes...),
		columns:    append([]string(nil), features.Columns...),
	}, nil
}

func checkClasses(classes []urgency.Level) error {
	if len(classes) != len(urgency.Levels) {
		return fmt.Errorf("%w: label encoder has %d classes, want %d", ErrNotLoaded, len(classes), len(urgency.Levels))
	}
	seen := make(map[urgency.Level]bool, len(classes))
	for _, c := range classes {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown label %q", ErrNotLoaded, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate label %q", ErrNotLoaded, c)
		}
		seen[c] = true
	}
	return nil
}

// TrainingID identifies the training run that produced the model.
func (c *Classifier) TrainingID() string {
	if c == nil {
		return ""
	}
	return c.trainingID
}

// Params returns the hyperparameters the tree was grown with.
func (c *Classifier) Params() cart.Params { return c.params }

// Classes returns the label order used by the tree.
func (c *Classifier) Classes() []urgency.Level {
	return append([]urgency.Level(nil), c.classes...)
}

// FeatureImportances maps each column to its normalized importance.
func (c *Classifier) FeatureImportances() map[string]float64 {
	imp := c.tree.FeatureImportances()
	out := make(map[string]float64, len(imp))
	for i, v := range imp {
		out[c.columns[i]] = v
	}
	return out
}

// Classify returns the most probable urgency for v with its confidence and the
// full distribution. Ties go to the earliest label in the persisted order.
func (c *Classifier) Classify(v features.Vector) (*Prediction, error) {
	if c == nil || c.tree == nil {
		return nil, ErrNotLoaded
	}
	if len(v) != c.tree.NumFeatures {
		return nil, fmt.Errorf("%w: got %d features, model expects %d", ErrShapeMismatch, len(v), c.tree.NumFeatures)
	}

	proba, err := c.tree.PredictProba(v)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	best := cart.Argmax(proba)
	dist := make(map[urgency.Level]float64, len(c.classes))
	for i, p := range proba {
		dist[c.classes[i]] = p
	}

	return &Prediction{
		Urgency:      c.classes[best],
		Confidence:   proba[best],
		Distribution: dist,
	}, nil
}

// LoadResult is the outcome of loading a model directory at startup. Exactly
// one of Classifier and Err is set.
type LoadResult struct {
	Classifier *Classifier
	Err        error
	Dir        string
	LoadedAt   time.Time
}

// Ready reports whether a classifier was loaded.
func (r LoadResult) Ready() bool { return r.Classifier != nil && r.Err == nil }

// LoadDir loads the artifacts in dir and records the outcome instead of
// failing, so a server can start and report itself not ready.
func LoadDir(dir string) LoadResult {
	c, err := Load(dir)
	return LoadResult{
		Classifier: c,
		Err:        err,
		Dir:        dir,
		LoadedAt:   time.Now().UTC(),
	}
}
