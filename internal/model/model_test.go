package model_test

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/linnemanlabs/medtriage/internal/cart"
	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/model"
	"github.com/linnemanlabs/medtriage/internal/model/modeltest"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	c := modeltest.Classifier(t)

	tests := []struct {
		name string
		rec  features.Record
		want urgency.Level
	}{
		{"chest pain", features.Record{SymptomsText: "severe chest pain"}, urgency.Emergency},
		{"routine", features.Record{SymptomsText: "annual checkup"}, urgency.Low},
		{"high pain", features.Record{PainLevel: ptr(9)}, urgency.High},
		{"defaults", features.Record{}, urgency.Medium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vec, _ := features.Extract(tt.rec)
			p, err := c.Classify(vec)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if p.Urgency != tt.want {
				t.Errorf("Urgency = %q, want %q", p.Urgency, tt.want)
			}

			var total, highest float64
			for _, v := range p.Distribution {
				total += v
				highest = math.Max(highest, v)
			}
			if math.Abs(total-1) > 1e-6 {
				t.Errorf("distribution sums to %v", total)
			}
			if p.Confidence != highest {
				t.Errorf("Confidence = %v, want max %v", p.Confidence, highest)
			}
			if len(p.Distribution) != len(urgency.Levels) {
				t.Errorf("distribution has %d levels", len(p.Distribution))
			}
		})
	}
}

func TestClassify_NilClassifier(t *testing.T) {
	t.Parallel()

	var c *model.Classifier
	vec, _ := features.Extract(features.Record{})
	if _, err := c.Classify(vec); !errors.Is(err, model.ErrNotLoaded) {
		t.Errorf("got %v, want ErrNotLoaded", err)
	}
}

func TestClassify_WrongLength(t *testing.T) {
	t.Parallel()

	c := modeltest.Classifier(t)
	for _, n := range []int{0, 15, 17} {
		if _, err := c.Classify(make(features.Vector, n)); !errors.Is(err, model.ErrShapeMismatch) {
			t.Errorf("len %d: got %v, want ErrShapeMismatch", n, err)
		}
	}
}

func TestClassify_TieGoesToFirstLabel(t *testing.T) {
	t.Parallel()

	tree := &cart.Tree{
		NumFeatures: features.NumFeatures,
		NumClasses:  4,
		Nodes: []cart.Node{{
			Feature: cart.Leaf, Left: cart.Leaf, Right: cart.Leaf,
			Value: []float64{0.1, 0.4, 0.4, 0.1},
		}},
	}
	c, err := model.New("run", tree, cart.Params{}, urgency.Levels)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, err := c.Classify(make(features.Vector, features.NumFeatures))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if p.Urgency != urgency.High || p.Confidence != 0.4 {
		t.Errorf("got %s/%v, want high/0.4", p.Urgency, p.Confidence)
	}
}

func TestNew_RejectsBadClasses(t *testing.T) {
	t.Parallel()

	tests := map[string][]urgency.Level{
		"missing":   {urgency.Emergency, urgency.High, urgency.Medium},
		"duplicate": {urgency.Emergency, urgency.High, urgency.High, urgency.Low},
		"unknown":   {urgency.Emergency, urgency.High, urgency.Medium, "critical"},
	}
	for name, classes := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := model.New("run", modeltest.Tree(), cart.Params{}, classes); !errors.Is(err, model.ErrNotLoaded) {
				t.Errorf("got %v, want ErrNotLoaded", err)
			}
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	orig := modeltest.Classifier(t)
	if err := orig.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, name := range []string{model.TreeFile, model.LabelsFile, model.ColumnsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	loaded, err := model.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.TrainingID() != modeltest.TrainingID {
		t.Errorf("TrainingID = %q", loaded.TrainingID())
	}
	if !reflect.DeepEqual(loaded.Params(), orig.Params()) {
		t.Errorf("Params = %+v, want %+v", loaded.Params(), orig.Params())
	}

	for _, text := range []string{"chest pain", "checkup", "", "cough"} {
		vec, _ := features.Extract(features.Record{SymptomsText: text, PainLevel: ptr(8)})
		a, _ := orig.Classify(vec)
		b, err := loaded.Classify(vec)
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		if a.Urgency != b.Urgency || a.Confidence != b.Confidence {
			t.Errorf("%q: loaded %s/%v, original %s/%v", text, b.Urgency, b.Confidence, a.Urgency, a.Confidence)
		}
	}
}

func TestLoad_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := model.Load(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, model.ErrNotLoaded) {
		t.Errorf("got %v, want ErrNotLoaded", err)
	}
}

func TestLoad_MixedTrainingIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := modeltest.Classifier(t).Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rewrite(t, filepath.Join(dir, model.LabelsFile), func(m map[string]any) {
		m["training_id"] = "01JC0000000000000000000000"
	})

	_, err := model.Load(dir)
	if !errors.Is(err, model.ErrArtifactMismatch) {
		t.Errorf("got %v, want ErrArtifactMismatch", err)
	}
	if !errors.Is(err, model.ErrNotLoaded) {
		t.Error("ErrArtifactMismatch should also match ErrNotLoaded")
	}
}

func TestLoad_ReorderedColumns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := modeltest.Classifier(t).Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rewrite(t, filepath.Join(dir, model.ColumnsFile), func(m map[string]any) {
		cols := m["columns"].([]any)
		cols[0], cols[1] = cols[1], cols[0]
	})

	if _, err := model.Load(dir); !errors.Is(err, model.ErrShapeMismatch) {
		t.Errorf("got %v, want ErrShapeMismatch", err)
	}
}

func TestLoad_MissingColumns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := modeltest.Classifier(t).Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rewrite(t, filepath.Join(dir, model.ColumnsFile), func(m map[string]any) {
		delete(m, "columns")
	})

	if _, err := model.Load(dir); !errors.Is(err, model.ErrShapeMismatch) {
		t.Errorf("got %v, want ErrShapeMismatch", err)
	}
}

func TestLoad_CorruptTree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := modeltest.Classifier(t).Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, model.TreeFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := model.Load(dir); !errors.Is(err, model.ErrNotLoaded) {
		t.Errorf("got %v, want ErrNotLoaded", err)
	}
}

func TestLoadDir_RecordsOutcome(t *testing.T) {
	t.Parallel()

	missing := model.LoadDir(filepath.Join(t.TempDir(), "absent"))
	if missing.Ready() || missing.Err == nil || missing.Classifier != nil {
		t.Errorf("missing dir: %+v", missing)
	}
	if missing.LoadedAt.IsZero() || missing.Dir == "" {
		t.Error("LoadDir should record dir and time even on failure")
	}

	dir := t.TempDir()
	if err := modeltest.Classifier(t).Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ok := model.LoadDir(dir)
	if !ok.Ready() {
		t.Fatalf("LoadDir: %v", ok.Err)
	}
}

func TestFeatureImportances_CoverColumns(t *testing.T) {
	t.Parallel()

	imp := modeltest.Classifier(t).FeatureImportances()
	if len(imp) != features.NumFeatures {
		t.Fatalf("got %d importances", len(imp))
	}
	if imp["age"] != 0 {
		t.Errorf("age importance = %v, want 0", imp["age"])
	}
}

func rewrite(t *testing.T, path string, edit func(map[string]any)) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	edit(m)
	data, err = json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func ptr(v float64) *float64 { return &v }
