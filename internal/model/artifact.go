package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/linnemanlabs/medtriage/internal/cart"
	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// Artifact file names inside a model directory.
const (
	TreeFile    = "triage_model.json"
	LabelsFile  = "label_encoder.json"
	ColumnsFile = "feature_names.json"
)

type treeArtifact struct {
	TrainingID string      `json:"training_id"`
	Algorithm  string      `json:"algorithm"`
	Criterion  string      `json:"criterion"`
	Params     cart.Params `json:"params"`
	Tree       *cart.Tree  `json:"tree"`
}

type labelsArtifact struct {
	TrainingID string          `json:"training_id"`
	Classes    []urgency.Level `json:"classes"`
}

type columnsArtifact struct {
	TrainingID string   `json:"training_id"`
	Columns    []string `json:"columns"`
}

// Save writes the three artifact files into dir, creating it if needed. Each
// file is written to a temporary name and renamed into place.
func (c *Classifier) Save(dir string) error {
	if c == nil {
		return ErrNotLoaded
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	files := []struct {
		name string
		v    any
	}{
		{TreeFile, treeArtifact{
			TrainingID: c.trainingID,
			Algorithm:  "decision_tree",
			Criterion:  "gini",
			Params:     c.params,
			Tree:       c.tree,
		}},
		{LabelsFile, labelsArtifact{TrainingID: c.trainingID, Classes: c.classes}},
		{ColumnsFile, columnsArtifact{TrainingID: c.trainingID, Columns: c.columns}},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.v); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load reads and validates the artifact set in dir.
func Load(dir string) (*Classifier, error) {
	var (
		ta treeArtifact
		la labelsArtifact
		ca columnsArtifact
	)
	if err := readJSON(filepath.Join(dir, TreeFile), &ta); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, LabelsFile), &la); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, ColumnsFile), &ca); err != nil {
		return nil, err
	}

	if ta.TrainingID == "" || ta.TrainingID != la.TrainingID || ta.TrainingID != ca.TrainingID {
		return nil, fmt.Errorf("%w: tree=%q labels=%q columns=%q",
			ErrArtifactMismatch, ta.TrainingID, la.TrainingID, ca.TrainingID)
	}
	if ta.Tree == nil {
		return nil, fmt.Errorf("%w: %s has no tree", ErrNotLoaded, TreeFile)
	}
	if !slices.Equal(ca.Columns, features.Columns) {
		return nil, fmt.Errorf("%w: persisted columns %v differ from extractor columns %v",
			ErrShapeMismatch, ca.Columns, features.Columns)
	}

	return New(ta.TrainingID, ta.Tree, ta.Params, la.Classes)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s not found", ErrNotLoaded, path)
		}
		return fmt.Errorf("%w: read %s: %v", ErrNotLoaded, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrNotLoaded, path, err)
	}
	return nil
}
