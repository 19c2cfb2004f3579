package history

import (
	"context"
	"testing"
	"time"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

type fakeHistoryRepo struct {
	entries  []store.HistoryEntry
	lastOpts store.QueryOpts
}

func (f *fakeHistoryRepo) ListByStudent(_ context.Context, _ string, opts store.QueryOpts) ([]store.HistoryEntry, error) {
	f.lastOpts = opts
	if opts.Limit > 0 && len(f.entries) > opts.Limit {
		return f.entries[:opts.Limit], nil
	}
	return f.entries, nil
}

func (f *fakeHistoryRepo) RecentForItem(_ context.Context, _ int64, _ int) ([]store.HistoryEntry, error) {
	return nil, nil
}

var now = time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC)

func entry(daysAgo int, correct bool, rating string, seconds int) store.HistoryEntry {
	return store.HistoryEntry{
		StudentID:        "s1",
		WasCorrect:       correct,
		SelfRating:       rating,
		TimeSpentSeconds: seconds,
		ReviewedAt:       now.AddDate(0, 0, -daysAgo),
	}
}

func TestCompute_Empty(t *testing.T) {
	st := Compute(nil, now, time.UTC)
	if st.TotalReviews != 0 || st.StreakDays != 0 || st.SuccessRate != 0 {
		t.Errorf("expected zero stats, got %+v", st)
	}
	if st.LastReviewedAt != nil {
		t.Error("expected nil last reviewed time")
	}
}

func TestCompute_Aggregates(t *testing.T) {
	entries := []store.HistoryEntry{
		entry(0, true, "good", 30),
		entry(0, false, "again", 90),
		entry(1, true, "easy", 15),
		entry(2, true, "good", 25),
	}
	st := Compute(entries, now, time.UTC)

	if st.TotalReviews != 4 || st.CorrectReviews != 3 {
		t.Errorf("unexpected totals: %+v", st)
	}
	if st.SuccessRate != 75 {
		t.Errorf("expected success rate 75, got %v", st.SuccessRate)
	}
	if st.AverageSessionSeconds != 40 {
		t.Errorf("expected average 40s, got %v", st.AverageSessionSeconds)
	}
	if st.ReviewedToday != 2 {
		t.Errorf("expected 2 reviewed today, got %d", st.ReviewedToday)
	}
	if st.StreakDays != 3 {
		t.Errorf("expected streak 3, got %d", st.StreakDays)
	}
	if st.ByRating["good"] != 2 || st.ByRating["again"] != 1 {
		t.Errorf("unexpected rating counts: %v", st.ByRating)
	}
	if st.LastReviewedAt == nil || !st.LastReviewedAt.Equal(now) {
		t.Errorf("expected last reviewed at %v, got %v", now, st.LastReviewedAt)
	}
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name    string
		daysAgo []int
		want    int
	}{
		{"today only", []int{0}, 1},
		{"ending yesterday still counts", []int{1, 2, 3}, 3},
		{"gap of two days breaks it", []int{2, 3}, 0},
		{"gap inside", []int{0, 1, 3, 4}, 2},
		{"several per day", []int{0, 0, 0, 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []store.HistoryEntry
			for _, d := range tt.daysAgo {
				entries = append(entries, entry(d, true, "good", 10))
			}
			if got := Compute(entries, now, time.UTC).StreakDays; got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreak_UsesConfiguredTimeZone(t *testing.T) {
	// 01:30 UTC on the 15th is still the 14th in New York.
	loc := time.FixedZone("EST", -5*60*60)
	at := time.Date(2025, 3, 15, 1, 30, 0, 0, time.UTC)
	entries := []store.HistoryEntry{
		{WasCorrect: true, SelfRating: "good", ReviewedAt: at},
		{WasCorrect: true, SelfRating: "good", ReviewedAt: at.Add(-24 * time.Hour)},
	}

	utc := Compute(entries, at, time.UTC)
	est := Compute(entries, at, loc)

	if utc.StreakDays != 2 || est.StreakDays != 2 {
		t.Errorf("expected streak 2 in both zones, got utc=%d est=%d", utc.StreakDays, est.StreakDays)
	}

	// Evening of the 15th in New York: the latest review was yesterday there.
	later := time.Date(2025, 3, 16, 1, 0, 0, 0, time.UTC)
	if got := Compute(entries, later, loc).ReviewedToday; got != 0 {
		t.Errorf("expected 0 reviewed today in EST, got %d", got)
	}
	if got := Compute(entries, later, loc).StreakDays; got != 2 {
		t.Errorf("expected streak 2 ending yesterday in EST, got %d", got)
	}
}

func TestLog_ListDefaultsLimit(t *testing.T) {
	repo := &fakeHistoryRepo{}
	l := NewLog(repo, nil)

	if _, err := l.List(context.Background(), "s1", 0); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastOpts.Limit != DefaultListLimit {
		t.Errorf("expected default limit %d, got %d", DefaultListLimit, repo.lastOpts.Limit)
	}

	if _, err := l.List(context.Background(), "", 10); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for missing student, got %v", err)
	}
	if _, err := l.List(context.Background(), "s1", -1); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for negative limit, got %v", err)
	}
}

func TestLog_AnalyticsScansEverything(t *testing.T) {
	repo := &fakeHistoryRepo{entries: []store.HistoryEntry{entry(0, true, "good", 10)}}
	l := NewLog(repo, time.UTC)
	l.now = func() time.Time { return now }

	st, err := l.Analytics(context.Background(), "s1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if repo.lastOpts.Limit != 0 {
		t.Errorf("analytics must not limit the scan, got limit %d", repo.lastOpts.Limit)
	}
	if st.StreakDays != 1 {
		t.Errorf("expected streak 1, got %d", st.StreakDays)
	}
}
