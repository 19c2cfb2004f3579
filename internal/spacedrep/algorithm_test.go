package spacedrep

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/EberSantana/flowedu-sub004/internal/store"
)

func TestStep_FailureResets(t *testing.T) {
	p := DefaultParams()

	interval, ease := p.Step(6, 2.5, true, RatingAgain)
	if interval != 1 {
		t.Errorf("expected interval 1, got %d", interval)
	}
	if math.Abs(ease-2.3) > 1e-9 {
		t.Errorf("expected ease 2.3, got %v", ease)
	}

	// A wrong answer resets regardless of the self rating.
	interval, ease = p.Step(30, 2.0, false, RatingEasy)
	if interval != 1 || math.Abs(ease-1.8) > 1e-9 {
		t.Errorf("expected (1, 1.8), got (%d, %v)", interval, ease)
	}
}

func TestStep_Ratings(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name         string
		interval     int
		ease         float64
		rating       Rating
		wantInterval int
		wantEase     float64
	}{
		{"hard", 10, 2.5, RatingHard, 12, 2.35},
		{"good", 6, 2.5, RatingGood, 15, 2.5},
		{"easy", 4, 2.5, RatingEasy, 13, 2.65},
		{"good rounds half away from zero", 1, 2.5, RatingGood, 3, 2.5},
		{"hard on one day stays at one", 1, 2.5, RatingHard, 1, 2.35},
		{"capped at max interval", 300, 2.5, RatingGood, 365, 2.5},
		{"ease floor", 5, 1.35, RatingHard, 6, 1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interval, ease := p.Step(tt.interval, tt.ease, true, tt.rating)
			if interval != tt.wantInterval {
				t.Errorf("interval: got %d, want %d", interval, tt.wantInterval)
			}
			if math.Abs(ease-tt.wantEase) > 1e-9 {
				t.Errorf("ease: got %v, want %v", ease, tt.wantEase)
			}
		})
	}
}

func TestStep_BoundsHoldForRandomSequences(t *testing.T) {
	p := DefaultParams()
	rng := rand.New(rand.NewPCG(1, 2))
	ratings := AllRatings()

	for run := range 200 {
		interval, ease := p.InitialIntervalDays, p.InitialEase
		for step := range 50 {
			rating := ratings[rng.IntN(len(ratings))]
			correct := rng.IntN(4) != 0
			interval, ease = p.Step(interval, ease, correct, rating)
			if ease < p.MinEase {
				t.Fatalf("run %d step %d: ease %v below floor", run, step, ease)
			}
			if interval < 1 || interval > p.MaxIntervalDays {
				t.Fatalf("run %d step %d: interval %d out of range", run, step, interval)
			}
		}
	}
}

func TestParseRating(t *testing.T) {
	for _, s := range []string{"again", "HARD", " Good ", "easy"} {
		if _, ok := ParseRating(s); !ok {
			t.Errorf("expected %q to parse", s)
		}
	}
	for _, s := range []string{"", "medium", "5"} {
		if _, ok := ParseRating(s); ok {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestSuccessRate(t *testing.T) {
	if got := SuccessRate(0, 0); got != 0 {
		t.Errorf("expected 0 for no reviews, got %v", got)
	}
	if got := SuccessRate(3, 4); got != 75 {
		t.Errorf("expected 75, got %v", got)
	}
}

func TestDifficulty(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		successRate, ease, want float64
	}{
		{100, 3.0, 0},
		{0, 1.3, 100},
		{50, 2.15, 50},
		{100, 3.5, 0}, // ease above ceiling clamps
	}
	for _, tt := range tests {
		if got := p.Difficulty(tt.successRate, tt.ease); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Difficulty(%v, %v) = %v, want %v", tt.successRate, tt.ease, got, tt.want)
		}
	}
}

func TestPriority(t *testing.T) {
	p := DefaultParams()
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item store.QueueItem
		want int
	}{
		{
			name: "not yet due",
			item: store.QueueItem{IntervalDays: 4, SuccessRate: 100, DifficultyScore: 0, NextReviewAt: now.Add(time.Hour)},
			want: 0,
		},
		{
			name: "half an interval overdue",
			item: store.QueueItem{IntervalDays: 4, SuccessRate: 100, DifficultyScore: 0, NextReviewAt: now.AddDate(0, 0, -2)},
			want: 20,
		},
		{
			name: "overdue term saturates",
			item: store.QueueItem{IntervalDays: 1, SuccessRate: 0, DifficultyScore: 100, NextReviewAt: now.AddDate(0, 0, -30)},
			want: 100,
		},
		{
			name: "weak item due now",
			item: store.QueueItem{IntervalDays: 1, SuccessRate: 40, DifficultyScore: 60, NextReviewAt: now},
			want: 36,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Priority(&tt.item, now); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBucketFor(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		priority int
		want     Bucket
	}{
		{0, BucketLow},
		{59, BucketLow},
		{60, BucketMedium},
		{79, BucketMedium},
		{80, BucketHigh},
		{100, BucketHigh},
	}
	for _, tt := range tests {
		if got := p.BucketFor(tt.priority); got != tt.want {
			t.Errorf("BucketFor(%d) = %s, want %s", tt.priority, got, tt.want)
		}
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	if !IsDue(&store.QueueItem{NextReviewAt: now, Status: store.QueueStatusScheduled}, now) {
		t.Error("item due exactly now should be due")
	}
	if IsDue(&store.QueueItem{NextReviewAt: now.Add(time.Second)}, now) {
		t.Error("future item should not be due")
	}
	if IsDue(&store.QueueItem{NextReviewAt: now.AddDate(0, 0, -1), Status: store.QueueStatusMastered}, now) {
		t.Error("mastered item should never be due")
	}
}
