package wallet

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/store"
)

const forwardBatch = 100

// Service records awards in the local ledger and forwards ledger lines to an
// optional remote Awarder. A line counts as delivered only once the remote
// accepted it; until then it stays in the outbox.
type Service struct {
	repo   store.AwardRepo
	remote Awarder
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a ledger-backed Service. remote and log may be nil.
func NewService(repo store.AwardRepo, remote Awarder, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, remote: remote, cfg: cfg, log: log, now: time.Now}
}

// ForScore builds the award for an automatically graded answer.
func (s *Service) ForScore(studentID string, answerID int64, score int) Award {
	return s.award(studentID, answerID, score, SourceGraded, "score")
}

// ForFinalScore builds the award that settles an answer to a teacher's score.
func (s *Service) ForFinalScore(studentID string, answerID int64, score int) Award {
	return s.award(studentID, answerID, score, SourceFinal, "final score")
}

func (s *Service) award(studentID string, answerID int64, score int, source, label string) Award {
	tier := TierForScore(score)
	return Award{
		StudentID: studentID,
		AnswerID:  answerID,
		Source:    source,
		Amount:    PointsForScore(score, s.cfg.MaxPointsPerAnswer),
		Tier:      tier,
		Reason:    fmt.Sprintf("%s answer (%s %d)", tier.DisplayName(), label, score),
		AwardedAt: s.now(),
	}
}

// AwardPoints settles the answer to award.Amount. A graded award is recorded
// once and ignored after a final one; a final award books the difference to
// whatever the answer already earned. Lines of this answer that the remote
// has not acknowledged are then forwarded, including ones left over from an
// earlier failed call.
func (s *Service) AwardPoints(ctx context.Context, award Award) error {
	if award.AwardedAt.IsZero() {
		award.AwardedAt = s.now()
	}
	if award.Source == "" {
		award.Source = SourceGraded
	}
	line := &store.PointAward{
		StudentID: award.StudentID,
		AnswerID:  award.AnswerID,
		Source:    award.Source,
		Amount:    award.Amount,
		Reason:    award.Reason,
		CreatedAt: award.AwardedAt,
	}
	created, err := s.repo.Settle(ctx, line)
	if err != nil {
		return fmt.Errorf("record award for answer %d: %w", award.AnswerID, err)
	}
	if created {
		s.log.Info("points awarded",
			zap.String("student_id", award.StudentID),
			zap.Int64("answer_id", award.AnswerID),
			zap.String("source", award.Source),
			zap.Int("target", award.Amount),
			zap.Int("change", line.Amount),
			zap.String("tier", string(award.Tier)),
		)
	} else {
		s.log.Debug("award already settled",
			zap.Int64("answer_id", award.AnswerID),
			zap.String("source", award.Source),
		)
	}

	if _, err := s.forward(ctx, award.AnswerID); err != nil {
		return fmt.Errorf("forward award for answer %d: %w", award.AnswerID, err)
	}
	return nil
}

// Forward re-sends every ledger line the remote has not acknowledged, oldest
// first, and reports how many were delivered. It stops at the first failure.
func (s *Service) Forward(ctx context.Context) (int, error) {
	return s.forward(ctx, 0)
}

// Run calls Forward every ForwardInterval until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if s.remote == nil || s.cfg.ForwardInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.ForwardInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Forward(ctx)
			if err != nil {
				s.log.Warn("forward pending awards", zap.Int("delivered", n), zap.Error(err))
			} else if n > 0 {
				s.log.Info("pending awards delivered", zap.Int("delivered", n))
			}
		}
	}
}

func (s *Service) forward(ctx context.Context, answerID int64) (int, error) {
	if s.remote == nil {
		return 0, nil
	}
	delivered := 0
	for {
		lines, err := s.repo.Unforwarded(ctx, answerID, forwardBatch)
		if err != nil {
			return delivered, err
		}
		for _, line := range lines {
			if err := s.remote.AwardPoints(ctx, fromLine(line)); err != nil {
				return delivered, fmt.Errorf("ledger line %d: %w", line.ID, err)
			}
			if err := s.repo.MarkForwarded(ctx, line.ID, s.now()); err != nil {
				return delivered, err
			}
			delivered++
		}
		if len(lines) < forwardBatch {
			return delivered, nil
		}
	}
}

func fromLine(line store.PointAward) Award {
	return Award{
		LedgerID:  line.ID,
		StudentID: line.StudentID,
		AnswerID:  line.AnswerID,
		Source:    line.Source,
		Amount:    line.Amount,
		Reason:    line.Reason,
		AwardedAt: line.CreatedAt,
	}
}

// Balance returns the student's total points.
func (s *Service) Balance(ctx context.Context, studentID string) (int, error) {
	return s.repo.Balance(ctx, studentID)
}

// Ledger returns the student's awards, newest first.
func (s *Service) Ledger(ctx context.Context, studentID string) ([]store.PointAward, error) {
	return s.repo.ListByStudent(ctx, studentID)
}
