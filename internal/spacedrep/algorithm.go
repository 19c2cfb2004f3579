package spacedrep

import (
	"math"
	"strings"
	"time"

	"github.com/EberSantana/flowedu-sub004/internal/store"
)

// Rating is the student's self-assessed recall quality.
type Rating string

const (
	RatingAgain Rating = "again"
	RatingHard  Rating = "hard"
	RatingGood  Rating = "good"
	RatingEasy  Rating = "easy"
)

// AllRatings returns the ratings from worst to best.
func AllRatings() []Rating {
	return []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}
}

// ParseRating accepts a rating name in any case.
func ParseRating(s string) (Rating, bool) {
	r := Rating(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RatingAgain, RatingHard, RatingGood, RatingEasy:
		return r, true
	}
	return "", false
}

// Bucket groups priorities for display.
type Bucket string

const (
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
)

// ParseBucket accepts a bucket name in any case.
func ParseBucket(s string) (Bucket, bool) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case BucketLow, BucketMedium, BucketHigh:
		return b, true
	}
	return "", false
}

// BucketFor maps a priority to its bucket.
func (p Params) BucketFor(priority int) Bucket {
	switch {
	case priority >= p.HighPriority:
		return BucketHigh
	case priority >= p.MediumPriority:
		return BucketMedium
	default:
		return BucketLow
	}
}

// Step computes the interval and ease after one review. The interval
// multiplier always uses the ease from before the review.
func (p Params) Step(interval int, ease float64, wasCorrect bool, rating Rating) (int, float64) {
	if !wasCorrect || rating == RatingAgain {
		return p.InitialIntervalDays, math.Max(p.MinEase, ease-p.AgainEasePenalty)
	}

	next := float64(interval)
	newEase := ease
	switch rating {
	case RatingHard:
		next *= p.HardMultiplier
		newEase -= p.HardEasePenalty
	case RatingGood:
		next *= ease
	case RatingEasy:
		next *= ease * p.EasyBonus
		newEase += p.EasyEaseBonus
	}
	return p.clampInterval(next), math.Max(p.MinEase, newEase)
}

func (p Params) clampInterval(days float64) int {
	// math.Round rounds half away from zero.
	n := int(math.Round(days))
	return max(p.InitialIntervalDays, min(p.MaxIntervalDays, n))
}

// SuccessRate is the running share of correct reviews as a percentage.
func SuccessRate(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}

// Difficulty blends the failure rate with how far ease has fallen.
func (p Params) Difficulty(successRate, ease float64) float64 {
	easeDifficulty := clamp((p.EaseCeiling-ease)/(p.EaseCeiling-p.MinEase)*100, 0, 100)
	return clamp(0.6*(100-successRate)+0.4*easeDifficulty, 0, 100)
}

// OverdueRatio is how many intervals past due the item is, zero when not
// yet due.
func OverdueRatio(item *store.QueueItem, now time.Time) float64 {
	if !now.After(item.NextReviewAt) {
		return 0
	}
	interval := max(1, item.IntervalDays)
	return now.Sub(item.NextReviewAt).Hours() / 24 / float64(interval)
}

// Priority ranks an item for the due queue at now.
func (p Params) Priority(item *store.QueueItem, now time.Time) int {
	overdue := math.Min(OverdueRatio(item, now), 1)
	score := p.OverdueWeight*overdue*100 +
		p.SuccessWeight*(100-item.SuccessRate) +
		p.DifficultyWeight*item.DifficultyScore
	return int(math.Round(clamp(score, 0, 100)))
}

// IsDue reports whether the item should be offered for review at now.
func IsDue(item *store.QueueItem, now time.Time) bool {
	return item.Status != store.QueueStatusMastered && !now.Before(item.NextReviewAt)
}

// masteryReached applies the interval and success thresholds. The recent
// window check needs history and is done by the caller.
func (p Params) masteryReached(item *store.QueueItem) bool {
	return item.IntervalDays > p.MasteryIntervalDays &&
		item.SuccessRate >= p.MasterySuccessRate &&
		item.ReviewCount >= p.MasteryWindow
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
