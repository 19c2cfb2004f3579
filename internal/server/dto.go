package server

import (
	"time"

	"github.com/EberSantana/flowedu-sub004/internal/session"
	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

type answerDTO struct {
	ID              int64      `json:"id"`
	StudentID       string     `json:"studentId"`
	TeacherID       string     `json:"teacherId"`
	ExerciseID      string     `json:"exerciseId"`
	QuestionNumber  int        `json:"questionNumber"`
	QuestionText    string     `json:"questionText"`
	QuestionKind    string     `json:"questionKind"`
	StudentAnswer   string     `json:"studentAnswer"`
	CorrectAnswer   *string    `json:"correctAnswer,omitempty"`
	AIScore         int        `json:"aiScore"`
	AIConfidence    int        `json:"aiConfidence"`
	AIFeedback      string     `json:"aiFeedback"`
	AIStrengths     []string   `json:"aiStrengths"`
	AIWeaknesses    []string   `json:"aiWeaknesses"`
	AIReasoning     string     `json:"aiReasoning,omitempty"`
	Degraded        bool       `json:"degraded"`
	NeedsReview     bool       `json:"needsReview"`
	FinalScore      *int       `json:"finalScore"`
	TeacherFeedback *string    `json:"teacherFeedback,omitempty"`
	EffectiveScore  int        `json:"effectiveScore"`
	CreatedAt       time.Time  `json:"createdAt"`
	FinalizedAt     *time.Time `json:"finalizedAt,omitempty"`
}

func toAnswerDTO(a *store.Answer) answerDTO {
	return answerDTO{
		ID:              a.ID,
		StudentID:       a.StudentID,
		TeacherID:       a.TeacherID,
		ExerciseID:      a.ExerciseID,
		QuestionNumber:  a.QuestionNumber,
		QuestionText:    a.QuestionText,
		QuestionKind:    string(a.QuestionKind),
		StudentAnswer:   a.StudentAnswerText,
		CorrectAnswer:   a.CorrectAnswerText,
		AIScore:         a.AIScore,
		AIConfidence:    a.AIConfidence,
		AIFeedback:      a.AIFeedback,
		AIStrengths:     nonNil(a.AIStrengths),
		AIWeaknesses:    nonNil(a.AIWeaknesses),
		AIReasoning:     a.AIReasoning,
		Degraded:        a.Degraded,
		NeedsReview:     a.NeedsReview,
		FinalScore:      a.FinalScore,
		TeacherFeedback: a.TeacherFeedback,
		EffectiveScore:  a.EffectiveScore(),
		CreatedAt:       a.CreatedAt,
		FinalizedAt:     a.FinalizedAt,
	}
}

func toAnswerDTOs(answers []store.Answer) []answerDTO {
	out := make([]answerDTO, len(answers))
	for i := range answers {
		out[i] = toAnswerDTO(&answers[i])
	}
	return out
}

type queueItemDTO struct {
	ID              int64      `json:"id"`
	StudentID       string     `json:"studentId"`
	ExerciseID      string     `json:"exerciseId"`
	AnswerID        int64      `json:"answerId"`
	ReviewCount     int        `json:"reviewCount"`
	CorrectCount    int        `json:"correctCount"`
	SuccessRate     float64    `json:"successRate"`
	IntervalDays    int        `json:"intervalDays"`
	EaseFactor      float64    `json:"easeFactor"`
	DifficultyScore float64    `json:"difficultyScore"`
	Priority        int        `json:"priority"`
	Status          string     `json:"status"`
	NextReviewDate  time.Time  `json:"nextReviewDate"`
	LastReviewedAt  *time.Time `json:"lastReviewedAt,omitempty"`
	MasteredAt      *time.Time `json:"masteredAt,omitempty"`
}

func toQueueItemDTO(it *store.QueueItem) *queueItemDTO {
	if it == nil {
		return nil
	}
	return &queueItemDTO{
		ID:              it.ID,
		StudentID:       it.StudentID,
		ExerciseID:      it.ExerciseID,
		AnswerID:        it.AnswerID,
		ReviewCount:     it.ReviewCount,
		CorrectCount:    it.CorrectCount,
		SuccessRate:     it.SuccessRate,
		IntervalDays:    it.IntervalDays,
		EaseFactor:      it.EaseFactor,
		DifficultyScore: it.DifficultyScore,
		Priority:        it.Priority,
		Status:          it.Status,
		NextReviewDate:  it.NextReviewAt,
		LastReviewedAt:  it.LastReviewedAt,
		MasteredAt:      it.MasteredAt,
	}
}

type queueEntryDTO struct {
	queueItemDTO
	Bucket      spacedrep.Bucket `json:"bucket"`
	OverdueDays float64          `json:"overdueDays"`
}

func toQueueEntryDTOs(entries []spacedrep.QueueEntry) []queueEntryDTO {
	out := make([]queueEntryDTO, len(entries))
	for i := range entries {
		out[i] = queueEntryDTO{
			queueItemDTO: *toQueueItemDTO(&entries[i].Item),
			Bucket:       entries[i].Bucket,
			OverdueDays:  entries[i].OverdueDays,
		}
	}
	return out
}

type historyDTO struct {
	ID               int64     `json:"id"`
	QueueItemID      int64     `json:"queueItemId"`
	StudentID        string    `json:"studentId"`
	WasCorrect       bool      `json:"wasCorrect"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	SelfRating       string    `json:"selfRating"`
	Notes            *string   `json:"notes,omitempty"`
	IntervalDays     int       `json:"intervalDays"`
	EaseFactor       float64   `json:"easeFactor"`
	ReviewedAt       time.Time `json:"reviewedAt"`
}

func toHistoryDTOs(entries []store.HistoryEntry) []historyDTO {
	out := make([]historyDTO, len(entries))
	for i, e := range entries {
		out[i] = historyDTO{
			ID:               e.ID,
			QueueItemID:      e.QueueItemID,
			StudentID:        e.StudentID,
			WasCorrect:       e.WasCorrect,
			TimeSpentSeconds: e.TimeSpentSeconds,
			SelfRating:       e.SelfRating,
			Notes:            e.Notes,
			IntervalDays:     e.IntervalDays,
			EaseFactor:       e.EaseFactor,
			ReviewedAt:       e.ReviewedAt,
		}
	}
	return out
}

type reviewSessionDTO struct {
	SessionID      string    `json:"sessionId"`
	QueueItemID    int64     `json:"queueItemId"`
	StudentID      string    `json:"studentId"`
	StartedAt      time.Time `json:"startedAt"`
	Phase          string    `json:"phase"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	Notes          string    `json:"notes,omitempty"`
	DraftAnswer    string    `json:"draftAnswer,omitempty"`
}

func toReviewSessionDTO(r *session.Review, now time.Time) reviewSessionDTO {
	return reviewSessionDTO{
		SessionID:      r.ID,
		QueueItemID:    r.QueueItemID,
		StudentID:      r.StudentID,
		StartedAt:      r.StartedAt,
		Phase:          r.Phase().String(),
		ElapsedSeconds: int(r.Elapsed(now).Round(time.Second) / time.Second),
		Notes:          r.Notes(),
		DraftAnswer:    r.DraftAnswer(),
	}
}

type awardDTO struct {
	AnswerID  int64     `json:"answerId"`
	Source    string    `json:"source"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
	Forwarded bool      `json:"forwarded"`
}

type walletDTO struct {
	StudentID string     `json:"studentId"`
	Balance   int        `json:"balance"`
	Ledger    []awardDTO `json:"ledger"`
}

type questionDTO struct {
	Number  int      `json:"number"`
	Text    string   `json:"text"`
	Kind    string   `json:"kind"`
	Options []string `json:"options,omitempty"`
	Points  int      `json:"points"`
}

type exerciseDTO struct {
	ID        string        `json:"id"`
	TeacherID string        `json:"teacherId"`
	Title     string        `json:"title"`
	Questions []questionDTO `json:"questions"`
}

// toExerciseDTOs leaves answer keys out.
func toExerciseDTOs(exercises []store.Exercise) []exerciseDTO {
	out := make([]exerciseDTO, len(exercises))
	for i, ex := range exercises {
		qs := make([]questionDTO, len(ex.Questions))
		for j, q := range ex.Questions {
			qs[j] = questionDTO{
				Number:  q.Number,
				Text:    q.Text,
				Kind:    string(q.Kind),
				Options: q.Options,
				Points:  q.Points,
			}
		}
		out[i] = exerciseDTO{ID: ex.ID, TeacherID: ex.TeacherID, Title: ex.Title, Questions: qs}
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
