// Package submission accepts student answers: it grades them, stores them,
// seeds their review schedule and credits points when the score is final.
package submission

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/grading"
	"github.com/EberSantana/flowedu-sub004/internal/store"
	"github.com/EberSantana/flowedu-sub004/internal/wallet"
)

// MaxAnswerLength bounds a single answer text in runes.
const MaxAnswerLength = 20000

// AnswerTooLong reports whether answer exceeds MaxAnswerLength runes.
func AnswerTooLong(answer string) bool {
	return utf8.RuneCountInString(answer) > MaxAnswerLength
}

// Grader grades answers.
type Grader interface {
	AnalyzeAnswer(ctx context.Context, in grading.Input) grading.Judgment
	AnalyzeBatch(ctx context.Context, inputs []grading.Input) []grading.Judgment
	GradeObjective(studentAnswer, correctAnswer string) grading.Judgment
}

// Questions resolves catalogue questions.
type Questions interface {
	Question(ctx context.Context, exerciseID string, number int) (*store.Question, *store.Exercise, error)
}

// Seeder creates review queue items.
type Seeder interface {
	Seed(ctx context.Context, a *store.Answer) (*store.QueueItem, error)
}

// Wallet credits points.
type Wallet interface {
	ForScore(studentID string, answerID int64, score int) wallet.Award
	AwardPoints(ctx context.Context, award wallet.Award) error
}

// Input is one submitted answer. Question fields are taken from the
// catalogue when the exercise is known there; inline values are used
// otherwise.
type Input struct {
	StudentID      string  `json:"studentId" binding:"required"`
	ExerciseID     string  `json:"exerciseId" binding:"required"`
	QuestionNumber int     `json:"questionNumber" binding:"gte=1"`
	Answer         string  `json:"answer"`
	TeacherID      string  `json:"teacherId,omitempty"`
	QuestionText   string  `json:"questionText,omitempty"`
	CorrectAnswer  *string `json:"correctAnswer,omitempty"`
	Objective      bool    `json:"objective,omitempty"`
	Context        string  `json:"context,omitempty"`
}

// Result is the acknowledgment returned to the student.
type Result struct {
	Answer    *store.Answer    `json:"answer"`
	QueueItem *store.QueueItem `json:"queueItem,omitempty"`
	Awarded   bool             `json:"awarded"`
}

// BatchResult pairs each batch input with its outcome.
type BatchResult struct {
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// Service handles submissions.
type Service struct {
	answers   store.AnswerRepo
	questions Questions
	grader    Grader
	seeder    Seeder
	wallet    Wallet
	log       *zap.Logger
	now       func() time.Time
}

// NewService creates a Service. questions, seeder, w and log may be nil.
func NewService(answers store.AnswerRepo, questions Questions, grader Grader, seeder Seeder, w Wallet, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		answers:   answers,
		questions: questions,
		grader:    grader,
		seeder:    seeder,
		wallet:    w,
		log:       log,
		now:       time.Now,
	}
}

// resolved is an Input with its question fixed.
type resolved struct {
	in        Input
	teacherID string
	question  string
	correct   *string
	kind      store.QuestionKind
}

func (r *resolved) objective() bool {
	return r.kind == store.KindObjective && r.correct != nil
}

func (r *resolved) gradingInput() grading.Input {
	gi := grading.Input{
		Question:      r.question,
		StudentAnswer: r.in.Answer,
		Context:       r.in.Context,
	}
	if r.correct != nil {
		gi.CorrectAnswer = *r.correct
	}
	return gi
}

// Submit grades and records one answer. Grading trouble never fails the
// submission; only a failure to store the answer does.
func (s *Service) Submit(ctx context.Context, in Input) (*Result, error) {
	r, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	var j grading.Judgment
	if r.objective() {
		j = s.grader.GradeObjective(in.Answer, *r.correct)
	} else {
		j = s.grader.AnalyzeAnswer(ctx, r.gradingInput())
	}
	return s.record(ctx, r, j)
}

// SubmitBatch grades subjective answers concurrently and records every
// input in order. Each input succeeds or fails on its own.
func (s *Service) SubmitBatch(ctx context.Context, inputs []Input) []BatchResult {
	out := make([]BatchResult, len(inputs))
	rs := make([]*resolved, len(inputs))

	var (
		judgeIdx    []int
		judgeInputs []grading.Input
	)
	for i, in := range inputs {
		r, err := s.resolve(ctx, in)
		if err != nil {
			out[i].Err = err
			continue
		}
		rs[i] = r
		if !r.objective() {
			judgeIdx = append(judgeIdx, i)
			judgeInputs = append(judgeInputs, r.gradingInput())
		}
	}

	judgments := make([]grading.Judgment, len(inputs))
	for k, j := range s.grader.AnalyzeBatch(ctx, judgeInputs) {
		judgments[judgeIdx[k]] = j
	}

	for i, r := range rs {
		if r == nil {
			continue
		}
		if r.objective() {
			judgments[i] = s.grader.GradeObjective(r.in.Answer, *r.correct)
		}
		out[i].Result, out[i].Err = s.record(ctx, r, judgments[i])
	}
	return out
}

func (s *Service) resolve(ctx context.Context, in Input) (*resolved, error) {
	if strings.TrimSpace(in.StudentID) == "" {
		return nil, apperr.Invalid("studentId", "required")
	}
	if strings.TrimSpace(in.ExerciseID) == "" {
		return nil, apperr.Invalid("exerciseId", "required")
	}
	if in.QuestionNumber < 1 {
		return nil, apperr.Invalid("questionNumber", "must be at least 1")
	}
	if AnswerTooLong(in.Answer) {
		return nil, apperr.Invalid("answer", "longer than %d characters", MaxAnswerLength)
	}

	r := &resolved{
		in:        in,
		teacherID: in.TeacherID,
		question:  in.QuestionText,
		correct:   in.CorrectAnswer,
		kind:      store.KindSubjective,
	}
	if in.Objective {
		r.kind = store.KindObjective
	}

	if s.questions != nil {
		q, ex, err := s.questions.Question(ctx, in.ExerciseID, in.QuestionNumber)
		switch {
		case err == nil:
			r.teacherID = ex.TeacherID
			r.question = q.Text
			r.correct = q.CorrectAnswer
			r.kind = q.Kind
			return r, nil
		case apperr.IsNotFound(err):
			// Fall through to the inline question.
		default:
			return nil, err
		}
	}

	if strings.TrimSpace(r.question) == "" {
		return nil, &apperr.NotFoundError{Kind: "question", ID: fmt.Sprintf("%s#%d", in.ExerciseID, in.QuestionNumber)}
	}
	return r, nil
}

func (s *Service) record(ctx context.Context, r *resolved, j grading.Judgment) (*Result, error) {
	a := &store.Answer{
		StudentID:         r.in.StudentID,
		TeacherID:         r.teacherID,
		ExerciseID:        r.in.ExerciseID,
		QuestionNumber:    r.in.QuestionNumber,
		QuestionText:      r.question,
		QuestionKind:      r.kind,
		StudentAnswerText: r.in.Answer,
		CorrectAnswerText: r.correct,
		AIScore:           j.Score,
		AIConfidence:      j.Confidence,
		AIFeedback:        j.Feedback,
		AIStrengths:       j.Strengths,
		AIWeaknesses:      j.Weaknesses,
		AIReasoning:       j.Reasoning,
		Degraded:          j.Degraded,
		NeedsReview:       j.NeedsReview,
		CreatedAt:         s.now(),
	}
	if err := s.answers.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}

	res := &Result{Answer: a}
	log := s.log.With(zap.Int64("answer_id", a.ID), zap.String("student_id", a.StudentID))
	log.Info("answer submitted",
		zap.Int("score", a.AIScore),
		zap.Int("confidence", a.AIConfidence),
		zap.Bool("needs_review", a.NeedsReview),
		zap.Bool("degraded", a.Degraded),
	)

	if s.seeder != nil {
		item, err := s.seeder.Seed(ctx, a)
		if err != nil {
			log.Error("seed review item", zap.Error(err))
		} else {
			res.QueueItem = item
		}
	}

	// A score awaiting teacher review is credited at finalization instead.
	if s.wallet != nil && !a.NeedsReview {
		award := s.wallet.ForScore(a.StudentID, a.ID, a.EffectiveScore())
		if err := s.wallet.AwardPoints(ctx, award); err != nil {
			log.Error("award points", zap.Error(err))
		} else {
			res.Awarded = true
		}
	}
	return res, nil
}
