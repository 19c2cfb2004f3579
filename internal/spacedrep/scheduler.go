// Package spacedrep schedules when each graded answer resurfaces for review
// using an SM-2 variant, and ranks due items by priority.
package spacedrep

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/metrics"
	"github.com/EberSantana/flowedu-sub004/internal/session"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

// maxConflictRetries bounds reloads after a concurrent writer bumped the
// item version.
const maxConflictRetries = 3

// RecordInput is one completed review.
type RecordInput struct {
	QueueItemID      int64
	WasCorrect       bool
	TimeSpentSeconds int
	SelfRating       string
	Notes            *string
}

// UpdateResult describes the item after a recorded review.
type UpdateResult struct {
	QueueItemID    int64     `json:"queueItemId"`
	HistoryID      int64     `json:"historyId"`
	NewInterval    int       `json:"newInterval"`
	NewEaseFactor  float64   `json:"newEaseFactor"`
	NewSuccessRate float64   `json:"newSuccessRate"`
	NewPriority    int       `json:"newPriority"`
	NextReviewDate time.Time `json:"nextReviewDate"`
	Mastered       bool      `json:"mastered"`
}

// Filters narrows the due queue.
type Filters struct {
	ExerciseID  string
	MinPriority int
	Bucket      Bucket // empty = any
}

// QueueEntry is a due item with its priority evaluated at query time.
type QueueEntry struct {
	Item        store.QueueItem `json:"item"`
	Bucket      Bucket          `json:"bucket"`
	OverdueDays float64         `json:"overdueDays"`
}

// DayForecast counts items becoming due on one calendar day.
type DayForecast struct {
	Date time.Time `json:"date"`
	Due  int       `json:"due"`
}

// Scheduler owns all writes to the review queue.
type Scheduler struct {
	queue   store.QueueRepo
	history store.HistoryRepo
	params  Params
	locks   *keyedMutex
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewScheduler creates a Scheduler. m and log may be nil.
func NewScheduler(queue store.QueueRepo, history store.HistoryRepo, params Params, m *metrics.Metrics, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		queue:   queue,
		history: history,
		params:  params,
		locks:   newKeyedMutex(),
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Params returns the scheduler's constants.
func (s *Scheduler) Params() Params {
	return s.params
}

// Seed creates the queue item for a graded answer. Seeding is idempotent per
// (student, answer); seeding again before the first review refreshes the
// difficulty and success rate from the answer's current effective score.
func (s *Scheduler) Seed(ctx context.Context, a *store.Answer) (*store.QueueItem, error) {
	now := s.now()
	score := float64(a.EffectiveScore())

	item := &store.QueueItem{
		StudentID:       a.StudentID,
		ExerciseID:      a.ExerciseID,
		AnswerID:        a.ID,
		SuccessRate:     score,
		IntervalDays:    s.params.InitialIntervalDays,
		EaseFactor:      s.params.InitialEase,
		DifficultyScore: 100 - score,
		Status:          store.QueueStatusScheduled,
		NextReviewAt:    now.AddDate(0, 0, s.params.InitialIntervalDays),
		CreatedAt:       now,
	}
	item.Priority = s.params.Priority(item, now)

	created, err := s.queue.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("seed review item for answer %d: %w", a.ID, err)
	}
	if created {
		s.log.Debug("review item seeded",
			zap.Int64("queue_item_id", item.ID),
			zap.Int64("answer_id", a.ID),
		)
		return item, nil
	}
	if item.ReviewCount > 0 {
		return item, nil
	}
	return s.refreshSeed(ctx, item.ID, score)
}

func (s *Scheduler) refreshSeed(ctx context.Context, id int64, score float64) (*store.QueueItem, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	for range maxConflictRetries {
		item, err := s.queue.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reload review item %d: %w", id, err)
		}
		if item.ReviewCount > 0 || (item.SuccessRate == score && item.DifficultyScore == 100-score) {
			return item, nil
		}
		item.SuccessRate = score
		item.DifficultyScore = 100 - score
		item.Priority = s.params.Priority(item, s.now())

		err = s.queue.Update(ctx, item)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("refresh review item %d: %w", id, err)
		}
		return item, nil
	}
	return nil, fmt.Errorf("refresh review item %d: %w", id, store.ErrVersionConflict)
}

// Open marks the item as under review and returns a fresh review session.
func (s *Scheduler) Open(ctx context.Context, queueItemID int64, studentID string) (*session.Review, error) {
	unlock := s.locks.Lock(queueItemID)
	defer unlock()

	for range maxConflictRetries {
		item, err := s.load(ctx, queueItemID)
		if err != nil {
			return nil, err
		}
		if studentID != "" && item.StudentID != studentID {
			return nil, &apperr.NotFoundError{Kind: "review item", ID: queueItemID}
		}
		if item.Status == store.QueueStatusMastered {
			return nil, apperr.Invalid("queueItemId", "item %d is mastered", queueItemID)
		}

		now := s.now()
		if item.Status != store.QueueStatusInReview {
			item.Status = store.QueueStatusInReview
			err = s.queue.Update(ctx, item)
			if errors.Is(err, store.ErrVersionConflict) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("open review item %d: %w", queueItemID, err)
			}
		}
		return session.New(item.ID, item.StudentID, now), nil
	}
	return nil, fmt.Errorf("open review item %d: %w", queueItemID, store.ErrVersionConflict)
}

// RecordReview applies one review to its item and appends it to the
// history, atomically. Every call is a new event.
func (s *Scheduler) RecordReview(ctx context.Context, in RecordInput) (*UpdateResult, error) {
	rating, ok := ParseRating(in.SelfRating)
	if !ok {
		return nil, apperr.Invalid("selfRating", "must be one of again, hard, good, easy; got %q", in.SelfRating)
	}
	if in.TimeSpentSeconds < 0 {
		return nil, apperr.Invalid("timeSpentSeconds", "must not be negative")
	}

	unlock := s.locks.Lock(in.QueueItemID)
	defer unlock()

	for range maxConflictRetries {
		res, err := s.recordOnce(ctx, in, rating)
		if errors.Is(err, store.ErrVersionConflict) {
			s.log.Warn("review item changed concurrently, retrying", zap.Int64("queue_item_id", in.QueueItemID))
			continue
		}
		if err != nil {
			return nil, err
		}
		s.metrics.ReviewRecorded(string(rating))
		return res, nil
	}
	return nil, fmt.Errorf("record review for item %d: %w", in.QueueItemID, store.ErrVersionConflict)
}

func (s *Scheduler) recordOnce(ctx context.Context, in RecordInput, rating Rating) (*UpdateResult, error) {
	item, err := s.load(ctx, in.QueueItemID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p := s.params

	item.IntervalDays, item.EaseFactor = p.Step(item.IntervalDays, item.EaseFactor, in.WasCorrect, rating)
	item.ReviewCount++
	if in.WasCorrect {
		item.CorrectCount++
	}
	item.SuccessRate = SuccessRate(item.CorrectCount, item.ReviewCount)
	item.DifficultyScore = p.Difficulty(item.SuccessRate, item.EaseFactor)
	item.NextReviewAt = now.AddDate(0, 0, item.IntervalDays)
	item.LastReviewedAt = &now

	mastered, err := s.isMastered(ctx, item, in.WasCorrect)
	if err != nil {
		return nil, err
	}
	switch {
	case mastered && item.Status != store.QueueStatusMastered:
		item.Status = store.QueueStatusMastered
		item.MasteredAt = &now
	case !mastered:
		item.Status = store.QueueStatusScheduled
		item.MasteredAt = nil
	}
	item.Priority = p.Priority(item, now)

	entry := &store.HistoryEntry{
		StudentID:        item.StudentID,
		WasCorrect:       in.WasCorrect,
		TimeSpentSeconds: in.TimeSpentSeconds,
		SelfRating:       string(rating),
		Notes:            in.Notes,
		IntervalDays:     item.IntervalDays,
		EaseFactor:       item.EaseFactor,
		ReviewedAt:       now,
	}
	if err := s.queue.RecordReview(ctx, item, entry); err != nil {
		return nil, fmt.Errorf("record review for item %d: %w", item.ID, err)
	}

	s.log.Info("review recorded",
		zap.Int64("queue_item_id", item.ID),
		zap.String("rating", string(rating)),
		zap.Bool("correct", in.WasCorrect),
		zap.Int("interval_days", item.IntervalDays),
		zap.Float64("ease", item.EaseFactor),
		zap.Bool("mastered", mastered),
	)

	return &UpdateResult{
		QueueItemID:    item.ID,
		HistoryID:      entry.ID,
		NewInterval:    item.IntervalDays,
		NewEaseFactor:  item.EaseFactor,
		NewSuccessRate: item.SuccessRate,
		NewPriority:    item.Priority,
		NextReviewDate: item.NextReviewAt,
		Mastered:       mastered,
	}, nil
}

// isMastered checks the thresholds on the updated item and that the last
// MasteryWindow reviews, including the one being recorded, were correct.
func (s *Scheduler) isMastered(ctx context.Context, item *store.QueueItem, current bool) (bool, error) {
	if !current || !s.params.masteryReached(item) {
		return false, nil
	}
	prior := s.params.MasteryWindow - 1
	if prior == 0 {
		return true, nil
	}
	recent, err := s.history.RecentForItem(ctx, item.ID, prior)
	if err != nil {
		return false, fmt.Errorf("load recent reviews for item %d: %w", item.ID, err)
	}
	if len(recent) < prior {
		return false, nil
	}
	for _, e := range recent {
		if !e.WasCorrect {
			return false, nil
		}
	}
	return true, nil
}

// Get returns a queue item with its priority evaluated now.
func (s *Scheduler) Get(ctx context.Context, queueItemID int64) (*store.QueueItem, error) {
	item, err := s.load(ctx, queueItemID)
	if err != nil {
		return nil, err
	}
	item.Priority = s.params.Priority(item, s.now())
	return item, nil
}

// Queue returns the student's due, non-mastered items, highest priority
// first. limit 0 means no limit. The result is never padded with items
// that are not yet due.
func (s *Scheduler) Queue(ctx context.Context, studentID string, f Filters, limit int) ([]QueueEntry, error) {
	if studentID == "" {
		return nil, apperr.Invalid("studentId", "required")
	}
	if limit < 0 {
		return nil, apperr.Invalid("limit", "must not be negative")
	}
	if f.Bucket != "" {
		if _, ok := ParseBucket(string(f.Bucket)); !ok {
			return nil, apperr.Invalid("bucket", "must be one of low, medium, high; got %q", f.Bucket)
		}
	}

	now := s.now()
	items, err := s.queue.List(ctx, store.QueueFilter{
		StudentID:  studentID,
		ExerciseID: f.ExerciseID,
		DueBefore:  now,
		Statuses:   []string{store.QueueStatusScheduled, store.QueueStatusInReview},
	})
	if err != nil {
		return nil, fmt.Errorf("load due items: %w", err)
	}

	entries := make([]QueueEntry, 0, len(items))
	for _, item := range items {
		if !IsDue(&item, now) {
			continue
		}
		item.Priority = s.params.Priority(&item, now)
		bucket := s.params.BucketFor(item.Priority)
		if item.Priority < f.MinPriority || (f.Bucket != "" && bucket != f.Bucket) {
			continue
		}
		entries = append(entries, QueueEntry{
			Item:        item,
			Bucket:      bucket,
			OverdueDays: now.Sub(item.NextReviewAt).Hours() / 24,
		})
	}

	slices.SortFunc(entries, func(a, b QueueEntry) int {
		return cmp.Or(
			cmp.Compare(b.Item.Priority, a.Item.Priority),
			a.Item.NextReviewAt.Compare(b.Item.NextReviewAt),
			cmp.Compare(a.Item.ID, b.Item.ID),
		)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Forecast counts non-mastered items becoming due on each of the next days
// calendar days, starting today. Overdue items count toward today.
func (s *Scheduler) Forecast(ctx context.Context, studentID string, days int) ([]DayForecast, error) {
	if studentID == "" {
		return nil, apperr.Invalid("studentId", "required")
	}
	if days < 1 || days > s.params.MaxIntervalDays {
		return nil, apperr.Invalid("days", "must be between 1 and %d", s.params.MaxIntervalDays)
	}

	loc := s.params.location()
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	items, err := s.queue.List(ctx, store.QueueFilter{
		StudentID: studentID,
		DueBefore: today.AddDate(0, 0, days),
		Statuses:  []string{store.QueueStatusScheduled, store.QueueStatusInReview},
	})
	if err != nil {
		return nil, fmt.Errorf("load upcoming items: %w", err)
	}

	out := make([]DayForecast, days)
	for i := range out {
		out[i].Date = today.AddDate(0, 0, i)
	}
	for _, item := range items {
		due := item.NextReviewAt.In(loc)
		idx := 0
		for idx+1 < days && !due.Before(out[idx+1].Date) {
			idx++
		}
		if idx == days-1 && !due.Before(today.AddDate(0, 0, days)) {
			continue
		}
		out[idx].Due++
	}
	return out, nil
}

func (s *Scheduler) load(ctx context.Context, id int64) (*store.QueueItem, error) {
	item, err := s.queue.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &apperr.NotFoundError{Kind: "review item", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load review item %d: %w", id, err)
	}
	return item, nil
}
