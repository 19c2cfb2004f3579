// Package history reads the append-only review ledger and derives student
// analytics from it on demand.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

// DefaultListLimit applies when List is called without a limit.
const DefaultListLimit = 50

// Stats are derived from the ledger and never stored.
type Stats struct {
	TotalReviews          int            `json:"totalReviews"`
	CorrectReviews        int            `json:"correctReviews"`
	SuccessRate           float64        `json:"successRate"`
	AverageSessionSeconds float64        `json:"averageSessionSeconds"`
	StreakDays            int            `json:"streakDays"`
	ReviewedToday         int            `json:"reviewedToday"`
	ByRating              map[string]int `json:"byRating"`
	LastReviewedAt        *time.Time     `json:"lastReviewedAt,omitempty"`
}

// Log serves history queries for one time zone.
type Log struct {
	repo store.HistoryRepo
	loc  *time.Location
	now  func() time.Time
}

// NewLog creates a Log. Calendar days are evaluated in loc; nil means UTC.
func NewLog(repo store.HistoryRepo, loc *time.Location) *Log {
	if loc == nil {
		loc = time.UTC
	}
	return &Log{repo: repo, loc: loc, now: time.Now}
}

// List returns the student's most recent reviews, newest first.
func (l *Log) List(ctx context.Context, studentID string, limit int) ([]store.HistoryEntry, error) {
	if studentID == "" {
		return nil, apperr.Invalid("studentId", "required")
	}
	if limit < 0 {
		return nil, apperr.Invalid("limit", "must not be negative")
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	entries, err := l.repo.ListByStudent(ctx, studentID, store.QueryOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list review history: %w", err)
	}
	return entries, nil
}

// Analytics scans the student's full ledger.
func (l *Log) Analytics(ctx context.Context, studentID string) (*Stats, error) {
	if studentID == "" {
		return nil, apperr.Invalid("studentId", "required")
	}
	entries, err := l.repo.ListByStudent(ctx, studentID, store.QueryOpts{})
	if err != nil {
		return nil, fmt.Errorf("load review history: %w", err)
	}
	return Compute(entries, l.now(), l.loc), nil
}

// Compute derives Stats from entries in any order.
func Compute(entries []store.HistoryEntry, now time.Time, loc *time.Location) *Stats {
	st := &Stats{ByRating: make(map[string]int)}
	if len(entries) == 0 {
		return st
	}

	today := dayOf(now, loc)
	days := make(map[time.Time]bool)
	totalSeconds := 0
	var last time.Time

	for _, e := range entries {
		st.TotalReviews++
		if e.WasCorrect {
			st.CorrectReviews++
		}
		st.ByRating[e.SelfRating]++
		totalSeconds += e.TimeSpentSeconds

		d := dayOf(e.ReviewedAt, loc)
		days[d] = true
		if d.Equal(today) {
			st.ReviewedToday++
		}
		if e.ReviewedAt.After(last) {
			last = e.ReviewedAt
		}
	}

	st.SuccessRate = 100 * float64(st.CorrectReviews) / float64(st.TotalReviews)
	st.AverageSessionSeconds = float64(totalSeconds) / float64(st.TotalReviews)
	st.StreakDays = streak(days, today)
	st.LastReviewedAt = &last
	return st
}

// streak counts consecutive active days ending today, or yesterday when
// nothing was reviewed yet today.
func streak(days map[time.Time]bool, today time.Time) int {
	cursor := today
	if !days[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
	}
	n := 0
	for days[cursor] {
		n++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return n
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
