package session

import "time"

// Summary aggregates the outcomes of one sitting.
type Summary struct {
	Duration     time.Duration
	TotalReviews int
	TotalCorrect int
	Accuracy     float64
	ByRating     map[string]int
}

// BuildSummary folds closed review outcomes into a Summary.
func BuildSummary(outcomes []Outcome) *Summary {
	s := &Summary{ByRating: make(map[string]int)}
	for _, o := range outcomes {
		s.TotalReviews++
		if o.WasCorrect {
			s.TotalCorrect++
		}
		s.ByRating[o.SelfRating]++
		s.Duration += time.Duration(o.TimeSpentSeconds) * time.Second
	}
	if s.TotalReviews > 0 {
		s.Accuracy = float64(s.TotalCorrect) / float64(s.TotalReviews)
	}
	return s
}
