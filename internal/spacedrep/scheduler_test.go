package spacedrep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/metrics"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store, *fakeClock) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := &fakeClock{now: testNow}
	sched := NewScheduler(s.Queue(), s.History(), DefaultParams(), metrics.New(), nil)
	sched.now = clock.Now
	return sched, s, clock
}

func createAnswer(t *testing.T, s *store.Store, studentID string, score int) *store.Answer {
	t.Helper()
	a := &store.Answer{
		StudentID:         studentID,
		TeacherID:         "t1",
		ExerciseID:        "ex1",
		QuestionNumber:    1,
		StudentAnswerText: "answer",
		AIScore:           score,
		AIConfidence:      90,
		CreatedAt:         testNow,
	}
	require.NoError(t, s.Answers().Create(context.Background(), a))
	return a
}

// setState forces interval and ease on an item, bypassing the scheduler.
func setState(t *testing.T, s *store.Store, item *store.QueueItem, interval int, ease float64) {
	t.Helper()
	item.IntervalDays = interval
	item.EaseFactor = ease
	require.NoError(t, s.Queue().Update(context.Background(), item))
}

func TestSeed_InitialState(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	a := createAnswer(t, s, "s1", 70)

	item, err := sched.Seed(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, 1, item.IntervalDays)
	assert.Equal(t, 2.5, item.EaseFactor)
	assert.Equal(t, 30.0, item.DifficultyScore)
	assert.Equal(t, 70.0, item.SuccessRate)
	assert.Equal(t, 0, item.ReviewCount)
	assert.Equal(t, store.QueueStatusScheduled, item.Status)
	assert.True(t, item.NextReviewAt.Equal(testNow.AddDate(0, 0, 1)))
	// 0.35*30 + 0.25*30
	assert.Equal(t, 18, item.Priority)
}

func TestSeed_Idempotent(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	a := createAnswer(t, s, "s1", 70)
	ctx := context.Background()

	first, err := sched.Seed(ctx, a)
	require.NoError(t, err)
	second, err := sched.Seed(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	items, err := s.Queue().List(ctx, store.QueueFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSeed_RefreshAfterFinalizeBeforeFirstReview(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	a := createAnswer(t, s, "s1", 60)
	ctx := context.Background()

	_, err := sched.Seed(ctx, a)
	require.NoError(t, err)

	final := 85
	a.FinalScore = &final
	item, err := sched.Seed(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 85.0, item.SuccessRate)
	assert.Equal(t, 15.0, item.DifficultyScore)

	// Once reviewed, re-seeding leaves the item alone.
	_, err = sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good"})
	require.NoError(t, err)
	final = 10
	after, err := sched.Seed(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 100.0, after.SuccessRate)
}

func TestRecordReview_Again(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	item, err := sched.Seed(context.Background(), createAnswer(t, s, "s1", 80))
	require.NoError(t, err)
	setState(t, s, item, 6, 2.5)

	res, err := sched.RecordReview(context.Background(), RecordInput{
		QueueItemID:      item.ID,
		WasCorrect:       true,
		TimeSpentSeconds: 40,
		SelfRating:       "again",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.NewInterval)
	assert.InDelta(t, 2.3, res.NewEaseFactor, 1e-9)
	assert.True(t, res.NextReviewDate.Equal(testNow.AddDate(0, 0, 1)))
}

func TestRecordReview_Easy(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	item, err := sched.Seed(context.Background(), createAnswer(t, s, "s1", 80))
	require.NoError(t, err)
	setState(t, s, item, 4, 2.5)

	res, err := sched.RecordReview(context.Background(), RecordInput{
		QueueItemID: item.ID,
		WasCorrect:  true,
		SelfRating:  "easy",
	})
	require.NoError(t, err)

	assert.Equal(t, 13, res.NewInterval)
	assert.InDelta(t, 2.65, res.NewEaseFactor, 1e-9)
	assert.Equal(t, 100.0, res.NewSuccessRate)
	assert.True(t, res.NextReviewDate.Equal(testNow.AddDate(0, 0, 13)))
}

func TestRecordReview_UpdatesCountersAndHistory(t *testing.T) {
	sched, s, clock := newTestScheduler(t)
	ctx := context.Background()
	item, err := sched.Seed(ctx, createAnswer(t, s, "s1", 50))
	require.NoError(t, err)

	notes := "mixed up the formula"
	inputs := []RecordInput{
		{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good", TimeSpentSeconds: 30},
		{QueueItemID: item.ID, WasCorrect: false, SelfRating: "hard", TimeSpentSeconds: 45, Notes: &notes},
		{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good", TimeSpentSeconds: 20},
	}
	var last *UpdateResult
	for _, in := range inputs {
		last, err = sched.RecordReview(ctx, in)
		require.NoError(t, err)
		clock.Advance(time.Hour)
	}

	stored, err := s.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ReviewCount)
	assert.Equal(t, 2, stored.CorrectCount)
	assert.InDelta(t, 66.667, stored.SuccessRate, 0.001)
	assert.InDelta(t, last.NewSuccessRate, stored.SuccessRate, 1e-9)
	require.NotNil(t, stored.LastReviewedAt)

	entries, err := s.History().ListByStudent(ctx, "s1", store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "good", entries[0].SelfRating)
	assert.Equal(t, "hard", entries[1].SelfRating)
	require.NotNil(t, entries[1].Notes)
	assert.Equal(t, notes, *entries[1].Notes)
	assert.Greater(t, entries[0].Sequence, entries[1].Sequence)
}

func TestRecordReview_Validation(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	item, err := sched.Seed(context.Background(), createAnswer(t, s, "s1", 50))
	require.NoError(t, err)

	_, err = sched.RecordReview(context.Background(), RecordInput{QueueItemID: item.ID, SelfRating: "meh"})
	assert.True(t, apperr.IsValidation(err), "bad rating: %v", err)

	_, err = sched.RecordReview(context.Background(), RecordInput{QueueItemID: item.ID, SelfRating: "good", TimeSpentSeconds: -1})
	assert.True(t, apperr.IsValidation(err), "negative time: %v", err)

	_, err = sched.RecordReview(context.Background(), RecordInput{QueueItemID: 9999, SelfRating: "good"})
	assert.True(t, apperr.IsNotFound(err), "unknown item: %v", err)

	entries, err := s.History().ListByStudent(context.Background(), "s1", store.QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected reviews must not touch history")
}

func TestRecordReview_ConcurrentCallsAreLinearized(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	ctx := context.Background()
	item, err := sched.Seed(ctx, createAnswer(t, s, "s1", 50))
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(correct bool) {
			defer wg.Done()
			_, err := sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: correct, SelfRating: "good"})
			if err != nil {
				t.Errorf("record review: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	stored, err := s.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.ReviewCount)
	assert.Equal(t, n/2, stored.CorrectCount)
	assert.Equal(t, 50.0, stored.SuccessRate)

	entries, err := s.History().ListByStudent(ctx, "s1", store.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestRecordReview_Mastery(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	ctx := context.Background()
	item, err := sched.Seed(ctx, createAnswer(t, s, "s1", 100))
	require.NoError(t, err)

	// Two correct reviews build the window without reaching the interval.
	for range 2 {
		res, err := sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good"})
		require.NoError(t, err)
		assert.False(t, res.Mastered)
	}

	current, err := s.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	setState(t, s, current, 100, 2.5)

	res, err := sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good"})
	require.NoError(t, err)
	assert.Equal(t, 250, res.NewInterval)
	assert.True(t, res.Mastered)

	stored, err := s.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, store.QueueStatusMastered, stored.Status)
	assert.NotNil(t, stored.MasteredAt)

	queue, err := sched.Queue(ctx, "s1", Filters{}, 0)
	require.NoError(t, err)
	assert.Empty(t, queue)

	_, err = sched.Open(ctx, item.ID, "s1")
	assert.True(t, apperr.IsValidation(err))
}

func TestRecordReview_NoMasteryAfterRecentMiss(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	ctx := context.Background()
	item, err := sched.Seed(ctx, createAnswer(t, s, "s1", 100))
	require.NoError(t, err)

	for i := range 20 {
		_, err := sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good"})
		require.NoError(t, err, "review %d", i)
	}
	_, err = sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: false, SelfRating: "again"})
	require.NoError(t, err)

	current, err := s.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	setState(t, s, current, 200, 2.5)

	// Success rate is above 90 and interval above 180, but the window
	// still contains the miss.
	res, err := sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good"})
	require.NoError(t, err)
	assert.False(t, res.Mastered)
	assert.GreaterOrEqual(t, res.NewSuccessRate, 90.0)
}

func TestOpen(t *testing.T) {
	sched, s, _ := newTestScheduler(t)
	ctx := context.Background()
	item, err := sched.Seed(ctx, createAnswer(t, s, "s1", 50))
	require.NoError(t, err)

	review, err := sched.Open(ctx, item.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, item.ID, review.QueueItemID)
	assert.True(t, review.StartedAt.Equal(testNow))

	stored, err := s.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, store.QueueStatusInReview, stored.Status)

	_, err = sched.Open(ctx, item.ID, "someone-else")
	assert.True(t, apperr.IsNotFound(err))

	_, err = sched.RecordReview(ctx, RecordInput{QueueItemID: item.ID, WasCorrect: true, SelfRating: "good"})
	require.NoError(t, err)
	stored, err = s.Queue().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, store.QueueStatusScheduled, stored.Status)
}

func TestQueue_DueOnlySortedAndLimited(t *testing.T) {
	sched, s, clock := newTestScheduler(t)
	ctx := context.Background()

	weak, err := sched.Seed(ctx, createAnswer(t, s, "s1", 20))
	require.NoError(t, err)
	strong, err := sched.Seed(ctx, createAnswer(t, s, "s1", 90))
	require.NoError(t, err)
	tie, err := sched.Seed(ctx, createAnswer(t, s, "s1", 90))
	require.NoError(t, err)
	_, err = sched.Seed(ctx, createAnswer(t, s, "s2", 10))
	require.NoError(t, err)

	// Nothing is due on the seeding day.
	queue, err := sched.Queue(ctx, "s1", Filters{}, 0)
	require.NoError(t, err)
	assert.Empty(t, queue)

	// Push one item far into the future so it stays not-due.
	future, err := sched.Seed(ctx, createAnswer(t, s, "s1", 0))
	require.NoError(t, err)
	future.NextReviewAt = testNow.AddDate(0, 0, 30)
	require.NoError(t, s.Queue().Update(ctx, future))

	clock.Advance(36 * time.Hour)
	queue, err = sched.Queue(ctx, "s1", Filters{}, 0)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, weak.ID, queue[0].Item.ID)
	assert.Equal(t, strong.ID, queue[1].Item.ID, "ties break by id")
	assert.Equal(t, tie.ID, queue[2].Item.ID)
	assert.GreaterOrEqual(t, queue[0].Item.Priority, queue[1].Item.Priority)
	assert.InDelta(t, 0.5, queue[0].OverdueDays, 1e-9)

	limited, err := sched.Queue(ctx, "s1", Filters{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	high, err := sched.Queue(ctx, "s1", Filters{MinPriority: 50}, 0)
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, weak.ID, high[0].Item.ID)

	_, err = sched.Queue(ctx, "s1", Filters{Bucket: "urgent"}, 0)
	assert.True(t, apperr.IsValidation(err))
}

func TestQueue_PriorityRecomputedAtQueryTime(t *testing.T) {
	sched, s, clock := newTestScheduler(t)
	ctx := context.Background()
	item, err := sched.Seed(ctx, createAnswer(t, s, "s1", 100))
	require.NoError(t, err)
	assert.Equal(t, 0, item.Priority)

	clock.Advance(3 * 24 * time.Hour)
	queue, err := sched.Queue(ctx, "s1", Filters{}, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 40, queue[0].Item.Priority)
	assert.Equal(t, BucketLow, queue[0].Bucket)
}

func TestForecast(t *testing.T) {
	sched, s, clock := newTestScheduler(t)
	ctx := context.Background()

	for range 2 {
		_, err := sched.Seed(ctx, createAnswer(t, s, "s1", 50))
		require.NoError(t, err)
	}
	later, err := sched.Seed(ctx, createAnswer(t, s, "s1", 50))
	require.NoError(t, err)
	later.NextReviewAt = testNow.AddDate(0, 0, 3)
	require.NoError(t, s.Queue().Update(ctx, later))

	far, err := sched.Seed(ctx, createAnswer(t, s, "s1", 50))
	require.NoError(t, err)
	far.NextReviewAt = testNow.AddDate(0, 0, 40)
	require.NoError(t, s.Queue().Update(ctx, far))

	// Two days later the first two are overdue and count toward today.
	clock.Advance(48 * time.Hour)
	days, err := sched.Forecast(ctx, "s1", 7)
	require.NoError(t, err)
	require.Len(t, days, 7)

	got := make([]int, len(days))
	for i, d := range days {
		got[i] = d.Due
	}
	assert.Equal(t, []int{2, 1, 0, 0, 0, 0, 0}, got)
	assert.True(t, days[0].Date.Equal(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)))

	_, err = sched.Forecast(ctx, "s1", 0)
	assert.True(t, apperr.IsValidation(err))
}

func TestScheduler_VersionConflictSurfacesAfterRetries(t *testing.T) {
	repo := &conflictingQueue{item: store.QueueItem{ID: 1, StudentID: "s1", IntervalDays: 1, EaseFactor: 2.5}}
	sched := NewScheduler(repo, nil, DefaultParams(), nil, nil)

	_, err := sched.RecordReview(context.Background(), RecordInput{QueueItemID: 1, WasCorrect: true, SelfRating: "good"})
	assert.True(t, errors.Is(err, store.ErrVersionConflict))
	assert.Equal(t, maxConflictRetries, repo.attempts)
}

// conflictingQueue always reports a concurrent writer.
type conflictingQueue struct {
	store.QueueRepo
	item     store.QueueItem
	attempts int
}

func (c *conflictingQueue) Get(_ context.Context, _ int64) (*store.QueueItem, error) {
	item := c.item
	return &item, nil
}

func (c *conflictingQueue) RecordReview(_ context.Context, _ *store.QueueItem, _ *store.HistoryEntry) error {
	c.attempts++
	return store.ErrVersionConflict
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(1)
	unlock2 := k.Lock(2)
	unlock()
	unlock2()
	if len(k.locks) != 0 {
		t.Errorf("expected no retained locks, got %d", len(k.locks))
	}
}
