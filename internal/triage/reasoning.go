package triage

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// FallbackFactor is used when no symptom flag or vital threshold matched.
const FallbackFactor = "general assessment based on vitals and symptoms"

// Reasoning thresholds.
const (
	HighPainLevel      = 7.0
	ElevatedTempC      = 39.0
	YoungPatientAge    = 5.0
	ElderlyPatientAge  = 70.0
	unknownLevelPrefix = "Assessment complete."
)

var severitySentence = map[urgency.Level]string{
	urgency.Emergency: "Emergency \u2014 immediate intervention required.",
	urgency.High:      "High priority \u2014 urgent attention needed.",
	urgency.Medium:    "Medium priority \u2014 timely care recommended.",
	urgency.Low:       "Low priority \u2014 routine consultation.",
}

// flagFactors lists the symptom phrases in the order they are reported.
var flagFactors = []struct {
	symptom features.Symptom
	phrase  string
}{
	{features.ChestPain, "chest pain detected"},
	{features.Unconscious, "patient is unconscious"},
	{features.SevereBleeding, "severe bleeding reported"},
	{features.DifficultyBreathing, "breathing difficulty reported"},
	{features.HighFever, "high fever (>103°F)"},
	{features.Fracture, "possible fracture/dislocation"},
	{features.Vomiting, "vomiting/nausea present"},
	{features.Infection, "infection suspected"},
}

// Factors returns the ordered factor phrases for a patient. It never returns
// an empty slice.
func Factors(flags features.Flags, painLevel, age, temperature float64) []string {
	var out []string
	for _, f := range flagFactors {
		if flags.Has(f.symptom) {
			out = append(out, f.phrase)
		}
	}
	if painLevel >= HighPainLevel {
		out = append(out, fmt.Sprintf("high pain level (%.0f/10)", math.Trunc(painLevel)))
	}
	if temperature >= ElevatedTempC {
		out = append(out, fmt.Sprintf("elevated temperature (%s°C)", formatTemp(temperature)))
	}
	if age < YoungPatientAge || age > ElderlyPatientAge {
		out = append(out, "age-related risk factor")
	}
	if flags.Has(features.Routine) {
		out = append(out, "routine / follow-up visit")
	}
	if len(out) == 0 {
		out = append(out, FallbackFactor)
	}
	return out
}

// Compose builds the reasoning text: a severity sentence for u followed by
// the matched factors.
func Compose(u urgency.Level, flags features.Flags, painLevel, age, temperature float64) string {
	lead, ok := severitySentence[u]
	if !ok {
		lead = unknownLevelPrefix
	}
	return lead + " Factors: " + strings.Join(Factors(flags, painLevel, age, temperature), ", ") + "."
}

// formatTemp prints the shortest exact decimal, keeping one fractional digit
// for whole values ("39.0", "39.5", "39.55").
func formatTemp(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
