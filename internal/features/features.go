// Package features maps patient intake records onto the fixed numeric vector
// the urgency classifier is trained on.
//
// Columns is the single definition of the vector layout. Training writes it
// next to the model and inference refuses a model whose persisted layout
// differs, so the two sides cannot drift apart silently.
package features

import "strings"

// Intake defaults applied to any field the caller leaves out.
const (
	DefaultAge             = 30.0
	DefaultPainLevel       = 3.0
	DefaultHeartRate       = 80.0
	DefaultSystolicBP      = 120.0
	DefaultRespiratoryRate = 16.0
	DefaultTemperature     = 37.0
)

// Symptom identifies one keyword category.
type Symptom int

const (
	ChestPain Symptom = iota
	DifficultyBreathing
	Unconscious
	SevereBleeding
	HighFever
	Fracture
	Vomiting
	Infection
	Headache
	Routine

	// NumSymptoms is the number of symptom categories.
	NumSymptoms = int(Routine) + 1
)

var symptomNames = [NumSymptoms]string{
	ChestPain:           "chest_pain",
	DifficultyBreathing: "difficulty_breathing",
	Unconscious:         "unconscious",
	SevereBleeding:      "severe_bleeding",
	HighFever:           "high_fever",
	Fracture:            "fracture",
	Vomiting:            "vomiting",
	Infection:           "infection",
	Headache:            "headache",
	Routine:             "routine",
}

// String returns the column name of the symptom category.
func (s Symptom) String() string {
	if s < 0 || int(s) >= NumSymptoms {
		return "unknown"
	}
	return symptomNames[s]
}

// keywords are matched as case-insensitive substrings, not whole words, so
// "104" fires inside "temp 104.2". Overlap between categories is expected.
var keywords = [NumSymptoms][]string{
	ChestPain:           {"chest pain", "chest ache", "heart pain", "cardiac", "heart attack"},
	DifficultyBreathing: {"breathing", "breath", "dyspnea", "shortness of breath", "respiratory", "choking", "suffocating", "asthma attack"},
	Unconscious:         {"unconscious", "unresponsive", "fainted", "fainting", "collapse", "fell down"},
	SevereBleeding:      {"bleeding", "hemorrhage", "blood loss", "wound", "laceration", "cut deep"},
	HighFever:           {"high fever", "fever 103", "fever 104", "103", "104", "105", "burning up"},
	Fracture:            {"fracture", "broken bone", "broken arm", "broken leg", "dislocation", "sprain"},
	Vomiting:            {"vomit", "nausea", "throwing up", "puke", "bile", "sick stomach"},
	Infection:           {"infection", "infected", "pus", "sepsis", "wound infection", "urinary tract", "uti"},
	Headache:            {"headache", "migraine", "head pain", "skull", "head ache"},
	Routine:             {"routine", "checkup", "follow up", "follow-up", "prescription", "vaccination", "review"},
}

// Keywords returns a copy of the keyword phrases for a symptom category.
func Keywords(s Symptom) []string {
	if s < 0 || int(s) >= NumSymptoms {
		return nil
	}
	return append([]string(nil), keywords[s]...)
}

// Vital column names, in vector order.
const (
	ColAge             = "age"
	ColPainLevel       = "pain_level"
	ColHeartRate       = "heart_rate"
	ColSystolicBP      = "systolic_bp"
	ColRespiratoryRate = "respiratory_rate"
	ColTemperature     = "temperature"
)

// NumVitals is the number of numeric vital columns leading the vector.
const NumVitals = 6

// NumFeatures is the length of every feature vector.
const NumFeatures = NumVitals + NumSymptoms

// Columns is the pinned feature order: six vitals followed by the symptom flags.
var Columns = func() []string {
	cols := []string{ColAge, ColPainLevel, ColHeartRate, ColSystolicBP, ColRespiratoryRate, ColTemperature}
	for s := Symptom(0); int(s) < NumSymptoms; s++ {
		cols = append(cols, s.String())
	}
	return cols
}()

// Vector is a feature vector laid out according to Columns.
type Vector []float64

// Flags holds one boolean per symptom category, indexed by Symptom.
type Flags [NumSymptoms]bool

// Has reports whether the symptom category was matched.
func (f Flags) Has(s Symptom) bool {
	if s < 0 || int(s) >= NumSymptoms {
		return false
	}
	return f[s]
}

// Names returns the column names of the matched categories in vector order.
func (f Flags) Names() []string {
	var out []string
	for s := Symptom(0); int(s) < NumSymptoms; s++ {
		if f[s] {
			out = append(out, s.String())
		}
	}
	return out
}

// Record is a single patient intake. Nil numeric fields take the documented
// defaults.
type Record struct {
	Age             *float64
	PainLevel       *float64
	HeartRate       *float64
	SystolicBP      *float64
	RespiratoryRate *float64
	Temperature     *float64
	SymptomsText    string
}

// Vitals is a Record's numeric fields with defaults resolved.
type Vitals struct {
	Age             float64 `json:"age"`
	PainLevel       float64 `json:"pain_level"`
	HeartRate       float64 `json:"heart_rate"`
	SystolicBP      float64 `json:"systolic_bp"`
	RespiratoryRate float64 `json:"respiratory_rate"`
	Temperature     float64 `json:"temperature"`
}

// Vitals resolves the record's numeric fields, applying defaults.
func (r Record) Vitals() Vitals {
	return Vitals{
		Age:             orDefault(r.Age, DefaultAge),
		PainLevel:       orDefault(r.PainLevel, DefaultPainLevel),
		HeartRate:       orDefault(r.HeartRate, DefaultHeartRate),
		SystolicBP:      orDefault(r.SystolicBP, DefaultSystolicBP),
		RespiratoryRate: orDefault(r.RespiratoryRate, DefaultRespiratoryRate),
		Temperature:     orDefault(r.Temperature, DefaultTemperature),
	}
}

// MatchSymptoms flags every category with at least one keyword contained in text.
func MatchSymptoms(text string) Flags {
	var flags Flags
	lower := strings.ToLower(text)
	if lower == "" {
		return flags
	}
	for s := range keywords {
		for _, kw := range keywords[s] {
			if strings.Contains(lower, kw) {
				flags[s] = true
				break
			}
		}
	}
	return flags
}

// Extract builds the feature vector and symptom flags for a record. Vitals
// are passed through unclamped.
func Extract(r Record) (Vector, Flags) {
	v := r.Vitals()
	flags := MatchSymptoms(r.SymptomsText)

	vec := make(Vector, 0, NumFeatures)
	vec = append(vec, v.Age, v.PainLevel, v.HeartRate, v.SystolicBP, v.RespiratoryRate, v.Temperature)
	for _, set := range flags {
		if set {
			vec = append(vec, 1)
		} else {
			vec = append(vec, 0)
		}
	}
	return vec, flags
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
