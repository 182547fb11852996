package triage

import (
	"strings"

	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// Verdict is a keyword-rule classification.
type Verdict struct {
	Urgency     urgency.Level
	TriageScore int
	Reasoning   string
}

// RuleBased classifies free-text symptoms with fixed keyword rules. It is the
// fallback used when no model is loaded.
func RuleBased(symptoms string, age float64) Verdict {
	s := strings.ToLower(symptoms)

	switch {
	case containsAny(s, "chest pain", "unconscious", "severe bleeding", "stroke"):
		return Verdict{urgency.Emergency, 10, "Critical symptoms detected"}
	case containsAny(s, "high fever", "breathing difficulty", "fracture", "103"):
		score := 7
		if age < YoungPatientAge || age > ElderlyPatientAge {
			score = 8
		}
		return Verdict{urgency.High, score, "Urgent symptoms requiring priority attention"}
	case containsAny(s, "fever", "pain", "infection", "vomiting"):
		return Verdict{urgency.Medium, 5, "Moderate symptoms, needs timely attention"}
	default:
		return Verdict{urgency.Low, 3, "Non-urgent symptoms, routine consultation"}
	}
}

// MaxConsultMinutes caps EstimateMinutes.
const MaxConsultMinutes = 60

// EstimateMinutes estimates consultation length from symptoms, age and
// urgency.
func EstimateMinutes(symptoms string, age float64, u urgency.Level) int {
	s := strings.ToLower(symptoms)
	mins := 15

	if containsAny(s, "chest pain", "breath") {
		mins += 15
	}
	if strings.Contains(s, "fever") && age < 12 {
		mins += 10
	}
	if containsAny(s, "migraine", "severe") {
		mins += 5
	}
	switch u {
	case urgency.Emergency:
		mins += 20
	case urgency.High:
		mins += 10
	case urgency.Medium:
		mins += 5
	}
	if age > 60 {
		mins += 5
	}
	if age < 5 {
		mins += 5
	}

	return min(mins, MaxConsultMinutes)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
