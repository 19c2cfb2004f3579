// Package triage routes low-confidence judgments to teachers and records
// their final scores.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/metrics"
	"github.com/EberSantana/flowedu-sub004/internal/store"
	"github.com/EberSantana/flowedu-sub004/internal/wallet"
)

// Wallet settles a finalized answer's points to the teacher's score, even
// when the automatic score was already credited.
type Wallet interface {
	ForFinalScore(studentID string, answerID int64, score int) wallet.Award
	AwardPoints(ctx context.Context, award wallet.Award) error
}

// Seeder refreshes the review queue item of a finalized answer.
type Seeder interface {
	Seed(ctx context.Context, a *store.Answer) (*store.QueueItem, error)
}

// Scope selects the answers a teacher may triage.
type Scope struct {
	TeacherID   string
	ExerciseIDs []string
	Limit       int
}

// Stats summarizes a teacher's pending queue.
type Stats struct {
	Pending        int     `json:"pending"`
	MeanConfidence float64 `json:"meanConfidence"`
	Degraded       int     `json:"degraded"`
}

// Manager lists and finalizes answers awaiting human review.
type Manager struct {
	answers store.AnswerRepo
	wallet  Wallet
	seeder  Seeder
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewManager creates a Manager. wallet, seeder, m and log may be nil.
func NewManager(answers store.AnswerRepo, w Wallet, seeder Seeder, m *metrics.Metrics, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		answers: answers,
		wallet:  w,
		seeder:  seeder,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// ListPending returns the teacher's answers that need review and have no
// final score, least confident first.
func (m *Manager) ListPending(ctx context.Context, scope Scope) ([]store.Answer, error) {
	if strings.TrimSpace(scope.TeacherID) == "" {
		return nil, apperr.Invalid("teacherId", "required")
	}
	if scope.Limit < 0 {
		return nil, apperr.Invalid("limit", "must not be negative")
	}
	answers, err := m.answers.ListPending(ctx, store.PendingFilter{
		TeacherID:   scope.TeacherID,
		ExerciseIDs: scope.ExerciseIDs,
		Limit:       scope.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	return answers, nil
}

// Finalize records the teacher's score and optional feedback. The score is
// set at most once; the winning call credits the student from finalScore.
func (m *Manager) Finalize(ctx context.Context, answerID int64, finalScore int, teacherFeedback *string) (*store.Answer, error) {
	if finalScore < 0 || finalScore > 100 {
		return nil, apperr.Invalid("finalScore", "must be between 0 and 100, got %d", finalScore)
	}

	a, err := m.answers.Get(ctx, answerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &apperr.NotFoundError{Kind: "answer", ID: answerID}
	}
	if err != nil {
		return nil, fmt.Errorf("load answer %d: %w", answerID, err)
	}
	if a.Finalized() {
		return nil, &apperr.AlreadyFinalizedError{AnswerID: answerID, FinalScore: *a.FinalScore}
	}

	at := m.now()
	won, err := m.answers.Finalize(ctx, answerID, finalScore, teacherFeedback, at)
	if err != nil {
		return nil, fmt.Errorf("finalize answer %d: %w", answerID, err)
	}
	if !won {
		// Lost a race with another finalizer.
		current, err := m.answers.Get(ctx, answerID)
		if err != nil {
			return nil, fmt.Errorf("reload answer %d: %w", answerID, err)
		}
		score := 0
		if current.FinalScore != nil {
			score = *current.FinalScore
		}
		return nil, &apperr.AlreadyFinalizedError{AnswerID: answerID, FinalScore: score}
	}

	a.FinalScore = &finalScore
	a.TeacherFeedback = teacherFeedback
	a.FinalizedAt = &at
	m.metrics.AnswerFinalized()
	m.log.Info("answer finalized",
		zap.Int64("answer_id", answerID),
		zap.Int("ai_score", a.AIScore),
		zap.Int("final_score", finalScore),
	)

	m.afterFinalize(ctx, a)
	return a, nil
}

// afterFinalize runs side effects that must not undo a durable final score.
func (m *Manager) afterFinalize(ctx context.Context, a *store.Answer) {
	if m.wallet != nil {
		award := m.wallet.ForFinalScore(a.StudentID, a.ID, *a.FinalScore)
		if err := m.wallet.AwardPoints(ctx, award); err != nil {
			m.log.Error("award points after finalize", zap.Int64("answer_id", a.ID), zap.Error(err))
		}
	}
	if m.seeder != nil {
		if _, err := m.seeder.Seed(ctx, a); err != nil {
			m.log.Error("refresh review item after finalize", zap.Int64("answer_id", a.ID), zap.Error(err))
		}
	}
}

// Stats summarizes the pending queue in scope.
func (m *Manager) Stats(ctx context.Context, scope Scope) (Stats, error) {
	scope.Limit = 0
	pending, err := m.ListPending(ctx, scope)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	st.Pending = len(pending)
	if st.Pending == 0 {
		return st, nil
	}
	total := 0
	for _, a := range pending {
		total += a.AIConfidence
		if a.Degraded {
			st.Degraded++
		}
	}
	st.MeanConfidence = float64(total) / float64(st.Pending)
	return st, nil
}
