// Package wallet credits students with points for graded answers.
package wallet

import (
	"context"
	"math"
	"time"
)

// Tier labels how well an answer scored.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// DisplayName returns a human-readable label for the tier.
func (t Tier) DisplayName() string {
	switch t {
	case TierBronze:
		return "Bronze"
	case TierSilver:
		return "Silver"
	case TierGold:
		return "Gold"
	default:
		return string(t)
	}
}

// TierForScore returns the tier for a 0-100 score.
func TierForScore(score int) Tier {
	switch {
	case score >= 90:
		return TierGold
	case score >= 70:
		return TierSilver
	default:
		return TierBronze
	}
}

// Award sources.
const (
	// SourceGraded credits from the automatic score.
	SourceGraded = "graded"
	// SourceFinal settles the answer to the teacher's final score.
	SourceFinal  = "final"
)

// Award is a request to credit a student for one answer. Amount is the total
// the answer should be worth; once recorded, it becomes the change the
// ledger line makes.
type Award struct {
	LedgerID  int64     `json:"ledgerId,omitempty"`
	StudentID string    `json:"studentId"`
	AnswerID  int64     `json:"answerId"`
	Source    string    `json:"source"`
	Amount    int       `json:"amount"`
	Tier      Tier      `json:"tier,omitempty"`
	Reason    string    `json:"reason"`
	AwardedAt time.Time `json:"awardedAt"`
}

// Awarder credits points. Implementations must treat a repeated LedgerID as
// a no-op.
type Awarder interface {
	AwardPoints(ctx context.Context, award Award) error
}

// Config holds wallet configuration.
type Config struct {
	// MaxPointsPerAnswer is credited for a score of 100.
	MaxPointsPerAnswer int `mapstructure:"max_points_per_answer" validate:"gte=0"`

	// RemoteURL, when set, forwards ledger lines to an external
	// gamification service.
	RemoteURL   string        `mapstructure:"remote_url" validate:"omitempty,url"`
	RemoteToken string        `mapstructure:"remote_token"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// ForwardInterval is how often the server re-sends lines the remote
	// has not acknowledged. Zero disables the loop.
	ForwardInterval time.Duration `mapstructure:"forward_interval" validate:"gte=0"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxPointsPerAnswer: 10,
		Timeout:            10 * time.Second,
		ForwardInterval:    time.Minute,
	}
}

// PointsForScore scales a 0-100 score to at most maxPoints.
func PointsForScore(score, maxPoints int) int {
	score = max(0, min(100, score))
	return int(math.Round(float64(score) * float64(maxPoints) / 100))
}
