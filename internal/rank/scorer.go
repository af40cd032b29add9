package rank

import (
	"math"
	"time"

	"horse.fit/paperboy/internal/story"
)

// SourceWeight tunes how one source's raw signal converts into score.
// Scale divides the signal before the log curve so sources with naturally
// large point ranges do not dominate sources with small ones.
type SourceWeight struct {
	Weight float64 `yaml:"weight"`
	Scale  float64 `yaml:"scale"`
}

// AgeDecay drains score as a story ages. Breakpoints are in days; the three
// hourly rates apply before the first breakpoint, between the two, and after
// the second. All rates must be non-negative.
type AgeDecay struct {
	BreakpointDays [2]float64 `yaml:"breakpoint_days"`
	HourlyRates    [3]float64 `yaml:"hourly_rates"`
}

// MultiSource rewards corroboration: stories reported by several sources get
// Factor * count^Power on top of the per-source terms, independent of any
// single source's signal.
type MultiSource struct {
	Power  float64 `yaml:"power"`
	Factor float64 `yaml:"factor"`
}

// Config is the full scoring table. It is operator configuration, loaded
// from the engine config file, never derived.
type Config struct {
	Sources           map[string]SourceWeight `yaml:"sources"`
	DefaultWeight     float64                 `yaml:"default_weight"`
	DefaultScale      float64                 `yaml:"default_scale"`
	CommentWeight     float64                 `yaml:"comment_weight"`
	CommentScale      float64                 `yaml:"comment_scale"`
	MultiSource       MultiSource             `yaml:"multi_source"`
	Decay             AgeDecay                `yaml:"decay"`
	NonEnglishPenalty float64                 `yaml:"non_english_penalty"`
}

// Scorer computes display scores. Scoring is deterministic given the story
// and "now": no randomness, no wall-clock reads of its own.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	if cfg.DefaultWeight == 0 {
		cfg.DefaultWeight = 1
	}
	if cfg.DefaultScale <= 0 {
		cfg.DefaultScale = 1
	}
	if cfg.CommentScale <= 0 {
		cfg.CommentScale = 1
	}
	return &Scorer{cfg: cfg}
}

func (s *Scorer) sourceWeight(name string) SourceWeight {
	if w, ok := s.cfg.Sources[name]; ok {
		if w.Scale <= 0 {
			w.Scale = s.cfg.DefaultScale
		}
		return w
	}
	return SourceWeight{Weight: s.cfg.DefaultWeight, Scale: s.cfg.DefaultScale}
}

// Score blends every contribution's signal, a comment bonus, the
// multi-source floor, the age decay and the language penalty. It is
// monotonic non-decreasing in each contribution's signal and monotonic
// non-increasing in story age.
func (s *Scorer) Score(st *story.Story, now time.Time) float64 {
	score := 0.0
	for _, c := range st.Contributions {
		w := s.sourceWeight(c.SourceName)
		if c.SourceSignal > 0 {
			score += w.Weight * math.Log1p(c.SourceSignal/w.Scale)
		}
		if c.CommentCount > 0 {
			score += s.cfg.CommentWeight * math.Log1p(float64(c.CommentCount)/s.cfg.CommentScale)
		}
	}
	if n := len(st.Contributions); n > 1 && s.cfg.MultiSource.Factor > 0 {
		score += s.cfg.MultiSource.Factor * math.Pow(float64(n), s.cfg.MultiSource.Power)
	}
	if st.Language != "" && st.Language != "en" {
		score -= s.cfg.NonEnglishPenalty
	}
	return score - s.agePenalty(now.Sub(st.CreatedAt))
}

// agePenalty accumulates the hourly decay rates across the breakpoints, so
// the penalty is continuous and non-decreasing in age.
func (s *Scorer) agePenalty(age time.Duration) float64 {
	hours := age.Hours()
	if hours <= 0 {
		return 0
	}
	bp0 := s.cfg.Decay.BreakpointDays[0] * 24
	bp1 := s.cfg.Decay.BreakpointDays[1] * 24
	rates := s.cfg.Decay.HourlyRates

	penalty := math.Min(hours, bp0) * rates[0]
	if hours > bp0 {
		penalty += (math.Min(hours, bp1) - bp0) * rates[1]
	}
	if hours > bp1 {
		penalty += (hours - bp1) * rates[2]
	}
	return penalty
}
