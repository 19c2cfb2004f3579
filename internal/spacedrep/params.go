package spacedrep

import "time"

// Params holds every tunable constant of the scheduler.
type Params struct {
	InitialIntervalDays int     `mapstructure:"initial_interval_days" validate:"gte=1"`
	InitialEase         float64 `mapstructure:"initial_ease" validate:"gtefield=MinEase"`
	MinEase             float64 `mapstructure:"min_ease" validate:"gte=1.3"`

	// EaseCeiling maps ease to difficulty: MinEase is hardest, EaseCeiling
	// and above is easiest.
	EaseCeiling float64 `mapstructure:"ease_ceiling" validate:"gtfield=MinEase"`

	AgainEasePenalty float64 `mapstructure:"again_ease_penalty" validate:"gte=0"`
	HardMultiplier   float64 `mapstructure:"hard_multiplier" validate:"gt=0"`
	HardEasePenalty  float64 `mapstructure:"hard_ease_penalty" validate:"gte=0"`
	EasyBonus        float64 `mapstructure:"easy_bonus" validate:"gte=1"`
	EasyEaseBonus    float64 `mapstructure:"easy_ease_bonus" validate:"gte=0"`
	MaxIntervalDays  int     `mapstructure:"max_interval_days" validate:"gtefield=InitialIntervalDays"`

	MasteryIntervalDays int     `mapstructure:"mastery_interval_days" validate:"gte=1"`
	MasterySuccessRate  float64 `mapstructure:"mastery_success_rate" validate:"gte=0,lte=100"`
	MasteryWindow       int     `mapstructure:"mastery_window" validate:"gte=1"`

	OverdueWeight    float64 `mapstructure:"overdue_weight" validate:"gte=0"`
	SuccessWeight    float64 `mapstructure:"success_weight" validate:"gte=0"`
	DifficultyWeight float64 `mapstructure:"difficulty_weight" validate:"gte=0"`
	HighPriority     int     `mapstructure:"high_priority" validate:"gtfield=MediumPriority,lte=100"`
	MediumPriority   int     `mapstructure:"medium_priority" validate:"gte=0"`

	// Location defines calendar days for forecasts. Nil means UTC.
	Location *time.Location `mapstructure:"-"`
}

// DefaultParams returns the standard SM-2 variant.
func DefaultParams() Params {
	return Params{
		InitialIntervalDays: 1,
		InitialEase:         2.5,
		MinEase:             1.3,
		EaseCeiling:         3.0,
		AgainEasePenalty:    0.2,
		HardMultiplier:      1.2,
		HardEasePenalty:     0.15,
		EasyBonus:           1.3,
		EasyEaseBonus:       0.15,
		MaxIntervalDays:     365,
		MasteryIntervalDays: 180,
		MasterySuccessRate:  90,
		MasteryWindow:       3,
		OverdueWeight:       0.4,
		SuccessWeight:       0.35,
		DifficultyWeight:    0.25,
		HighPriority:        80,
		MediumPriority:      60,
	}
}

func (p Params) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
