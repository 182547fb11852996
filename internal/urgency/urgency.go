// Package urgency defines the closed set of triage urgency tiers.
package urgency

import "fmt"

// Level is a triage urgency tier.
type Level string

const (
	// Emergency means immediate intervention required
	Emergency Level = "emergency"

	// High means urgent attention needed
	High Level = "high"

	// Medium means timely care recommended
	Medium Level = "medium"

	// Low means routine consultation
	Low Level = "low"
)

// Levels is the pinned label order, most severe first. Classifier ties resolve
// to the earliest level in this order.
var Levels = []Level{Emergency, High, Medium, Low}

// UnknownScore is the triage score for a level outside the closed set.
const UnknownScore = 3

// Score maps an urgency level to its numeric triage score for queue ordering.
func Score(l Level) int {
	switch l {
	case Emergency:
		return 10
	case High:
		return 7
	case Medium:
		return 5
	case Low:
		return 2
	default:
		return UnknownScore
	}
}

// Valid reports whether l is one of the closed set of levels.
func (l Level) Valid() bool {
	switch l {
	case Emergency, High, Medium, Low:
		return true
	}
	return false
}

// Parse converts s into a Level, rejecting anything outside the closed set.
func Parse(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown urgency level %q", s)
	}
	return l, nil
}
