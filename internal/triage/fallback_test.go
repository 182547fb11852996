package triage

import (
	"testing"

	"github.com/linnemanlabs/medtriage/internal/urgency"
)

func TestRuleBased(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		symptoms string
		age      float64
		want     Verdict
	}{
		{"chest pain", "Crushing CHEST PAIN since noon", 50, Verdict{urgency.Emergency, 10, "Critical symptoms detected"}},
		{"stroke", "possible stroke, slurred speech", 65, Verdict{urgency.Emergency, 10, "Critical symptoms detected"}},
		{"emergency wins over high", "high fever and unconscious", 30, Verdict{urgency.Emergency, 10, "Critical symptoms detected"}},
		{"high adult", "breathing difficulty at night", 30, Verdict{urgency.High, 7, "Urgent symptoms requiring priority attention"}},
		{"high child", "temperature 103", 3, Verdict{urgency.High, 8, "Urgent symptoms requiring priority attention"}},
		{"high elderly", "hip fracture", 82, Verdict{urgency.High, 8, "Urgent symptoms requiring priority attention"}},
		{"high age boundary", "high fever", 70, Verdict{urgency.High, 7, "Urgent symptoms requiring priority attention"}},
		{"medium", "mild fever", 30, Verdict{urgency.Medium, 5, "Moderate symptoms, needs timely attention"}},
		{"medium pain", "back pain", 30, Verdict{urgency.Medium, 5, "Moderate symptoms, needs timely attention"}},
		{"low", "annual checkup", 30, Verdict{urgency.Low, 3, "Non-urgent symptoms, routine consultation"}},
		{"empty", "", 30, Verdict{urgency.Low, 3, "Non-urgent symptoms, routine consultation"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RuleBased(tt.symptoms, tt.age); got != tt.want {
				t.Errorf("RuleBased(%q, %v) = %+v, want %+v", tt.symptoms, tt.age, got, tt.want)
			}
		})
	}
}

func TestEstimateMinutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		symptoms string
		age      float64
		u        urgency.Level
		want     int
	}{
		{"base", "checkup", 30, urgency.Low, 15},
		{"medium", "rash", 30, urgency.Medium, 20},
		{"high", "fracture", 30, urgency.High, 25},
		{"fever in child", "fever", 8, urgency.Medium, 30},
		{"fever in adult", "fever", 30, urgency.Medium, 20},
		{"breath", "short of breath", 30, urgency.High, 40},
		{"migraine", "migraine", 30, urgency.Low, 20},
		{"older", "checkup", 61, urgency.Low, 20},
		{"toddler fever", "fever", 2, urgency.Low, 30},
		{"capped", "severe chest pain", 80, urgency.Emergency, MaxConsultMinutes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := EstimateMinutes(tt.symptoms, tt.age, tt.u); got != tt.want {
				t.Errorf("EstimateMinutes(%q, %v, %q) = %d, want %d", tt.symptoms, tt.age, tt.u, got, tt.want)
			}
		})
	}
}
