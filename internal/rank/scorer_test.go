package rank

import (
	"testing"
	"time"

	"horse.fit/paperboy/internal/story"
)

func testScorer() *Scorer {
	return NewScorer(Config{
		Sources: map[string]SourceWeight{
			"hackernews": {Weight: 1.0, Scale: 10},
			"reddit":     {Weight: 0.5, Scale: 500},
		},
		DefaultWeight: 1,
		DefaultScale:  10,
		CommentWeight: 0.3,
		CommentScale:  20,
		MultiSource:   MultiSource{Power: 2, Factor: 1.5},
		Decay: AgeDecay{
			BreakpointDays: [2]float64{2, 14},
			HourlyRates:    [3]float64{0.1, 0.025, 0.005},
		},
		NonEnglishPenalty: 2,
	})
}

func testStory(created time.Time) *story.Story {
	return &story.Story{
		CreatedAt: created,
		Contributions: []story.Contribution{
			{SourceName: "hackernews", SourceSignal: 120, CommentCount: 40},
		},
	}
}

func TestScoreMonotonicInSignal(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := testScorer()

	prev := -1e9
	for _, signal := range []float64{0, 1, 10, 100, 1000, 100000} {
		st := testStory(now.Add(-3 * time.Hour))
		st.Contributions[0].SourceSignal = signal
		got := scorer.Score(st, now)
		if got < prev {
			t.Fatalf("score decreased when signal rose to %v: %v < %v", signal, got, prev)
		}
		prev = got
	}
}

func TestScoreNonIncreasingInAge(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := testScorer()

	prev := 1e9
	for _, age := range []time.Duration{0, time.Hour, 24 * time.Hour, 72 * time.Hour, 30 * 24 * time.Hour, 365 * 24 * time.Hour} {
		got := scorer.Score(testStory(now.Add(-age)), now)
		if got > prev {
			t.Fatalf("score increased at age %v: %v > %v", age, got, prev)
		}
		prev = got
	}
}

func TestScoreMultiSourceCorroboration(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := testScorer()

	single := testStory(now.Add(-time.Hour))
	double := testStory(now.Add(-time.Hour))
	double.Contributions = append(double.Contributions, story.Contribution{
		SourceName: "lobsters", SourceSignal: 1,
	})
	if scorer.Score(double, now) <= scorer.Score(single, now) {
		t.Fatalf("expected a second source to raise the score")
	}
}

func TestScoreLargeScaleSourceDoesNotDominate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := testScorer()

	hn := &story.Story{
		CreatedAt:     now.Add(-time.Hour),
		Contributions: []story.Contribution{{SourceName: "hackernews", SourceSignal: 200}},
	}
	reddit := &story.Story{
		CreatedAt:     now.Add(-time.Hour),
		Contributions: []story.Contribution{{SourceName: "reddit", SourceSignal: 200}},
	}
	if scorer.Score(reddit, now) >= scorer.Score(hn, now) {
		t.Fatalf("expected the high-scale source's raw points to count for less")
	}
}

func TestScoreNonEnglishPenalty(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := testScorer()

	english := testStory(now.Add(-time.Hour))
	english.Language = "en"
	other := testStory(now.Add(-time.Hour))
	other.Language = "de"
	diff := scorer.Score(english, now) - scorer.Score(other, now)
	if diff != 2 {
		t.Fatalf("expected penalty of 2, got diff %v", diff)
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := testScorer()
	st := testStory(now.Add(-50 * time.Hour))
	if scorer.Score(st, now) != scorer.Score(st, now) {
		t.Fatalf("expected identical inputs to produce identical scores")
	}
}
