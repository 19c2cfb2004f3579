package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // judge calls only; empty = any
}

// QuestionKind distinguishes answers graded by exact match from those sent
// to the judge.
type QuestionKind string

const (
	KindObjective  QuestionKind = "objective"
	KindSubjective QuestionKind = "subjective"
)

// Answer is one student's response to one question of one exercise attempt.
type Answer struct {
	ID                int64
	StudentID         string
	TeacherID         string
	ExerciseID        string
	QuestionNumber    int
	QuestionText      string
	QuestionKind      QuestionKind
	StudentAnswerText string
	CorrectAnswerText *string
	AIScore           int
	AIConfidence      int
	AIFeedback        string
	AIStrengths       []string
	AIWeaknesses      []string
	AIReasoning       string
	Degraded          bool
	NeedsReview       bool
	FinalScore        *int
	TeacherFeedback   *string
	CreatedAt         time.Time
	FinalizedAt       *time.Time
}

// EffectiveScore is the score used for any downstream award: the human
// score once set, the automated one otherwise.
func (a *Answer) EffectiveScore() int {
	if a.FinalScore != nil {
		return *a.FinalScore
	}
	return a.AIScore
}

// Finalized reports whether a human score has been recorded.
func (a *Answer) Finalized() bool {
	return a.FinalScore != nil
}

// PendingFilter scopes the triage listing.
type PendingFilter struct {
	TeacherID   string
	ExerciseIDs []string // empty = all of the teacher's exercises
	Limit       int
}

// AnswerRepo persists answers. Rows are written once at submission and once
// more at finalization.
type AnswerRepo interface {
	Create(ctx context.Context, a *Answer) error
	Get(ctx context.Context, id int64) (*Answer, error)

	// ListPending returns answers needing review and not yet finalized,
	// least confident first, oldest first on ties.
	ListPending(ctx context.Context, f PendingFilter) ([]Answer, error)

	// Finalize sets the human score if none is set yet. It reports false
	// without modifying the row when the answer was already finalized.
	Finalize(ctx context.Context, id int64, score int, feedback *string, at time.Time) (bool, error)
}

// Queue item statuses. Due is derived from next_review_at and never stored.
const (
	QueueStatusScheduled = "scheduled"
	QueueStatusInReview  = "in_review"
	QueueStatusMastered  = "mastered"
)

// QueueItem is the per-(student, answer) spaced-repetition state.
type QueueItem struct {
	ID              int64
	StudentID       string
	ExerciseID      string
	AnswerID        int64
	ReviewCount     int
	CorrectCount    int
	SuccessRate     float64
	IntervalDays    int
	EaseFactor      float64
	DifficultyScore float64
	Priority        int
	Status          string
	NextReviewAt    time.Time
	LastReviewedAt  *time.Time
	MasteredAt      *time.Time
	Version         int64
	CreatedAt       time.Time
}

// QueueFilter selects queue items for a student.
type QueueFilter struct {
	StudentID  string
	ExerciseID string
	DueBefore  time.Time // zero = no due-date predicate
	Statuses   []string  // empty = any status
}

// QueueRepo persists review queue items. It is only written by the
// scheduler.
type QueueRepo interface {
	// Create inserts the item unless one already exists for the same
	// (student, answer). It reports whether a row was inserted; item is
	// populated from the stored row either way.
	Create(ctx context.Context, item *QueueItem) (bool, error)
	Get(ctx context.Context, id int64) (*QueueItem, error)
	GetByAnswer(ctx context.Context, studentID string, answerID int64) (*QueueItem, error)
	List(ctx context.Context, f QueueFilter) ([]QueueItem, error)

	// Update writes all mutable fields if the stored version still equals
	// item.Version, then bumps the version.
	Update(ctx context.Context, item *QueueItem) error

	// RecordReview atomically updates the item (same version rule as
	// Update) and appends the history entry.
	RecordReview(ctx context.Context, item *QueueItem, entry *HistoryEntry) error
}

// HistoryEntry is an immutable review outcome.
type HistoryEntry struct {
	ID               int64
	Sequence         int64
	QueueItemID      int64
	StudentID        string
	WasCorrect       bool
	TimeSpentSeconds int
	SelfRating       string
	Notes            *string
	IntervalDays     int
	EaseFactor       float64
	ReviewedAt       time.Time
}

// HistoryRepo reads the append-only review ledger. Appends go through
// QueueRepo.RecordReview so they share the item's transaction.
type HistoryRepo interface {
	// ListByStudent returns entries newest first.
	ListByStudent(ctx context.Context, studentID string, opts QueryOpts) ([]HistoryEntry, error)

	// RecentForItem returns the last n entries of a queue item, newest first.
	RecentForItem(ctx context.Context, queueItemID int64, n int) ([]HistoryEntry, error)
}

// Award sources. A final award settles the answer to the teacher's score.
const (
	AwardSourceGraded = "graded"
	AwardSourceFinal  = "final"
)

// PointAward is a wallet ledger line. Amount is the change it makes to the
// student's balance.
type PointAward struct {
	ID          int64
	StudentID   string
	AnswerID    int64
	Source      string
	Amount      int
	Reason      string
	CreatedAt   time.Time
	ForwardedAt *time.Time
}

// AwardRepo persists point awards, at most one line per answer and source.
type AwardRepo interface {
	// Settle brings the answer's credited total to award.Amount and stores
	// the difference as a new line, rewriting award.Amount to it. It reports
	// false when the line already exists or, for a graded award, when the
	// answer was already settled by a final one.
	Settle(ctx context.Context, award *PointAward) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]PointAward, error)
	Balance(ctx context.Context, studentID string) (int, error)

	// Unforwarded returns lines not yet acknowledged by the remote wallet,
	// oldest first. answerID 0 selects every answer.
	Unforwarded(ctx context.Context, answerID int64, limit int) ([]PointAward, error)
	MarkForwarded(ctx context.Context, id int64, at time.Time) error
}

// JudgeCallEventData captures a single external judge invocation.
type JudgeCallEventData struct {
	RequestID    string
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// JudgeCallRecord is a stored judge call.
type JudgeCallRecord struct {
	ID        int64
	Timestamp time.Time
	JudgeCallEventData
}

// JudgeUsage aggregates judge calls for the usage report.
type JudgeUsage struct {
	Key          string // purpose or model
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// JudgeCallRepo provides append and query access to judge call events.
type JudgeCallRepo interface {
	AppendJudgeCall(ctx context.Context, data JudgeCallEventData) error
	QueryJudgeCalls(ctx context.Context, opts QueryOpts) ([]JudgeCallRecord, error)
	GetJudgeCall(ctx context.Context, id int64) (*JudgeCallRecord, error)
	UsageByPurpose(ctx context.Context) ([]JudgeUsage, error)
	UsageByModel(ctx context.Context) ([]JudgeUsage, error)
}

// Exercise is a catalogue entry owned by a teacher.
type Exercise struct {
	ID        string
	TeacherID string
	Title     string
	Questions []Question
	CreatedAt time.Time
}

// Question is read-only reference data for grading.
type Question struct {
	ExerciseID    string
	Number        int
	Text          string
	Kind          QuestionKind
	Options       []string
	CorrectAnswer *string
	Points        int
}

// ExerciseRepo is the read-mostly exercise catalogue.
type ExerciseRepo interface {
	// Upsert replaces the exercise and all of its questions.
	Upsert(ctx context.Context, ex *Exercise) error
	Get(ctx context.Context, id string) (*Exercise, error)
	Question(ctx context.Context, exerciseID string, number int) (*Question, *Exercise, error)
	List(ctx context.Context, teacherID string) ([]Exercise, error)
}
