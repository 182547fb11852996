package training

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// gauss describes a clamped normal draw truncated toward zero.
type gauss struct {
	mu, sigma float64
	lo, hi    float64
}

// profile is the synthetic patient population for one urgency level, loosely
// following Emergency Severity Index groupings.
type profile struct {
	level     urgency.Level
	share     float64
	ageLo     int
	ageHi     int
	scenarios []string
	pain      gauss
	heartRate gauss
	bp        gauss
	resp      gauss
	temp      func(g *generator, scenario string) float64
	flags     func(g *generator, scenario string) features.Flags
}

var profiles = []profile{
	{
		level: urgency.Emergency, share: 0.18, ageLo: 18, ageHi: 85,
		scenarios: []string{"chest_pain", "unconscious", "severe_bleeding", "stroke", "respiratory_arrest"},
		pain:      gauss{9, 0.5, 8, 10},
		heartRate: gauss{130, 15, 110, 180},
		bp:        gauss{160, 20, 90, 220},
		resp:      gauss{26, 3, 20, 40},
		temp:      func(g *generator, _ string) float64 { return g.temperature(38.5, 0.5) },
		flags: func(_ *generator, s string) features.Flags {
			var f features.Flags
			f[features.ChestPain] = s == "chest_pain" || s == "stroke"
			f[features.DifficultyBreathing] = s == "respiratory_arrest" || s == "chest_pain"
			f[features.Unconscious] = s == "unconscious"
			f[features.SevereBleeding] = s == "severe_bleeding"
			f[features.Headache] = s == "stroke"
			return f
		},
	},
	{
		level: urgency.High, share: 0.25, ageLo: 1, ageHi: 90,
		scenarios: []string{"high_fever", "breathing_difficulty", "fracture", "severe_pain"},
		pain:      gauss{7.5, 0.8, 6, 10},
		heartRate: gauss{110, 12, 90, 150},
		bp:        gauss{140, 15, 100, 180},
		resp:      gauss{22, 3, 18, 35},
		temp: func(g *generator, s string) float64 {
			if s == "high_fever" {
				return g.temperature(39.5, 0.4)
			}
			return g.temperature(37.5, 0.3)
		},
		flags: func(g *generator, s string) features.Flags {
			var f features.Flags
			f[features.DifficultyBreathing] = s == "breathing_difficulty"
			f[features.HighFever] = s == "high_fever"
			f[features.Fracture] = s == "fracture"
			f[features.Vomiting] = g.coin()
			return f
		},
	},
	{
		level: urgency.Medium, share: 0.32, ageLo: 5, ageHi: 80,
		scenarios: []string{"fever", "vomiting", "infection", "moderate_pain", "uti"},
		pain:      gauss{5, 1, 3, 7},
		heartRate: gauss{92, 10, 70, 120},
		bp:        gauss{125, 12, 100, 160},
		resp:      gauss{18, 2, 14, 24},
		temp: func(g *generator, s string) float64 {
			if s == "fever" {
				return g.temperature(38.2, 0.5)
			}
			return g.temperature(37.2, 0.3)
		},
		flags: func(g *generator, s string) features.Flags {
			var f features.Flags
			f[features.Vomiting] = s == "vomiting"
			f[features.Infection] = s == "infection"
			f[features.Headache] = g.coin()
			return f
		},
	},
	{
		level: urgency.Low, share: 0.25, ageLo: 10, ageHi: 75,
		scenarios: []string{"routine", "cold", "mild_headache", "follow_up", "mild_cough"},
		pain:      gauss{2, 1, 0, 4},
		heartRate: gauss{78, 8, 60, 100},
		bp:        gauss{118, 10, 100, 140},
		resp:      gauss{16, 1, 12, 20},
		temp:      func(g *generator, _ string) float64 { return g.temperature(37.0, 0.3) },
		flags: func(g *generator, s string) features.Flags {
			var f features.Flags
			f[features.Infection] = g.coin()
			f[features.Headache] = s == "mild_headache"
			f[features.Routine] = s == "routine" || s == "follow_up"
			return f
		},
	},
}

type generator struct {
	rng *rand.Rand
}

func (g *generator) draw(d gauss) float64 {
	v := distuv.Normal{Mu: d.mu, Sigma: d.sigma, Src: g.rng}.Rand()
	return math.Min(d.hi, math.Max(d.lo, math.Trunc(v)))
}

func (g *generator) temperature(mu, sigma float64) float64 {
	v := distuv.Normal{Mu: mu, Sigma: sigma, Src: g.rng}.Rand()
	return math.Round(v*10) / 10
}

func (g *generator) between(lo, hi int) float64 {
	return float64(lo + g.rng.IntN(hi-lo+1))
}

func (g *generator) coin() bool { return g.rng.IntN(2) == 1 }

// Generate builds a shuffled synthetic dataset of roughly n rows split
// 18/25/32/25 across emergency, high, medium and low. The same seed always
// yields the same rows.
func Generate(n int, seed uint64) *Dataset {
	g := &generator{rng: rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))}

	ds := &Dataset{}
	for _, p := range profiles {
		count := int(float64(n) * p.share)
		for range count {
			scenario := p.scenarios[g.rng.IntN(len(p.scenarios))]
			vec := make(features.Vector, 0, features.NumFeatures)
			vec = append(vec,
				g.between(p.ageLo, p.ageHi),
				g.draw(p.pain),
				g.draw(p.heartRate),
				g.draw(p.bp),
				g.draw(p.resp),
				p.temp(g, scenario),
			)
			for _, set := range p.flags(g, scenario) {
				if set {
					vec = append(vec, 1)
				} else {
					vec = append(vec, 0)
				}
			}
			ds.Rows = append(ds.Rows, Row{Features: vec, Urgency: p.level})
		}
	}

	g.rng.Shuffle(len(ds.Rows), func(i, j int) {
		ds.Rows[i], ds.Rows[j] = ds.Rows[j], ds.Rows[i]
	})
	return ds
}
