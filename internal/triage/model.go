package triage

import (
	"time"

	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// Source records which path produced a verdict.
type Source string

const (
	// SourceModel means the decision tree classified the patient
	SourceModel Source = "decision_tree_ml"

	// SourceRules means the keyword fallback classified the patient
	SourceRules Source = "keyword_rules"
)

// Result is the outcome of one inference.
type Result struct {
	Urgency      urgency.Level
	Confidence   float64
	TriageScore  int
	Reasoning    string
	Distribution map[urgency.Level]float64
	Flags        features.Flags
	Vitals       features.Vitals
	TrainingID   string
}

// Record is the audit entry written for every successful verdict.
type Record struct {
	ID               string                    `json:"id"`
	CreatedAt        time.Time                 `json:"created_at"`
	Source           Source                    `json:"source"`
	Vitals           features.Vitals           `json:"vitals"`
	SymptomsText     string                    `json:"symptoms_text"`
	Symptoms         []string                  `json:"symptoms,omitempty"`
	Urgency          urgency.Level             `json:"urgency"`
	Confidence       float64                   `json:"confidence,omitempty"`
	TriageScore      int                       `json:"triage_score"`
	Reasoning        string                    `json:"reasoning"`
	Distribution     map[urgency.Level]float64 `json:"distribution,omitempty"`
	EstimatedMinutes int                       `json:"estimated_minutes,omitempty"`
	TrainingID       string                    `json:"training_id,omitempty"`
	Duration         float64                   `json:"duration_seconds"`
}

// TriageRequest is the clinic intake used by Service.Triage. Zero Age and
// PainLevel mean not supplied.
type TriageRequest struct {
	Symptoms       string  `json:"symptoms"`
	MedicalHistory string  `json:"medical_history"`
	Age            float64 `json:"age"`
	PainLevel      float64 `json:"pain_level"`
}

// TriageResponse is the clinic-facing verdict.
type TriageResponse struct {
	ID               string
	Urgency          urgency.Level
	TriageScore      int
	Reasoning        string
	Confidence       *float64
	Source           Source
	EstimatedMinutes int
}
