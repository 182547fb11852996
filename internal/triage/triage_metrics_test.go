package triage

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// gathered returns the families on reg keyed by name.
func gathered(t *testing.T, reg *prometheus.Registry) map[string][]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string][]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			}
			out[mf.GetName()] = append(out[mf.GetName()], v)
		}
	}
	return out
}

func TestMetrics_Hooks(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h := NewMetrics(reg).Hooks()

	h.OnInfer(&InferEvent{Source: SourceModel, Urgency: urgency.High, Confidence: 0.7, Duration: 0.0001})
	h.OnInfer(&InferEvent{Source: SourceModel, Urgency: urgency.High, Confidence: 0.8, Duration: 0.0002})
	h.OnInfer(&InferEvent{Source: SourceRules, Urgency: urgency.Low, Duration: 0.00001})
	h.OnError(KindInvalidInput)

	got := gathered(t, reg)

	if n := len(got["medtriage_predictions_total"]); n != 2 {
		t.Errorf("prediction series = %d, want 2 (high/model and low/rules)", n)
	}
	if c := got["medtriage_inference_duration_seconds"]; len(c) != 1 || c[0] != 3 {
		t.Errorf("inference duration samples = %v, want [3]", c)
	}
	if c := got["medtriage_prediction_confidence"]; len(c) != 1 || c[0] != 2 {
		t.Errorf("confidence samples = %v, want [2] (rule verdicts excluded)", c)
	}
	if c := got["medtriage_prediction_errors_total"]; len(c) != 1 || c[0] != 1 {
		t.Errorf("errors = %v, want [1]", c)
	}
}

func TestMetrics_SetModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		r         Readiness
		wantReady float64
		wantInfo  int
	}{
		{"ready", Readiness{Ready: true, TrainingID: "01ABC", ModelDir: "models"}, 1, 1},
		{"not ready", Readiness{ModelDir: "models"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := prometheus.NewRegistry()
			NewMetrics(reg).SetModel(tt.r)

			got := gathered(t, reg)
			if r := got["medtriage_model_ready"]; len(r) != 1 || r[0] != tt.wantReady {
				t.Errorf("model_ready = %v, want [%v]", r, tt.wantReady)
			}
			if n := len(got["medtriage_model_info"]); n != tt.wantInfo {
				t.Errorf("model_info series = %d, want %d", n, tt.wantInfo)
			}
		})
	}
}

func TestMetrics_DoubleRegisterPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("registering twice did not panic")
		}
	}()
	NewMetrics(reg)
}
