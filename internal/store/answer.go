package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const answerColumns = `id, student_id, teacher_id, exercise_id, question_number,
	question_text, question_kind, student_answer, correct_answer,
	ai_score, ai_confidence, ai_feedback, ai_strengths, ai_weaknesses,
	ai_reasoning, degraded, needs_review, final_score, teacher_feedback,
	created_at, finalized_at`

type answerRow struct {
	ID              int64          `db:"id"`
	StudentID       string         `db:"student_id"`
	TeacherID       string         `db:"teacher_id"`
	ExerciseID      string         `db:"exercise_id"`
	QuestionNumber  int            `db:"question_number"`
	QuestionText    string         `db:"question_text"`
	QuestionKind    string         `db:"question_kind"`
	StudentAnswer   string         `db:"student_answer"`
	CorrectAnswer   sql.NullString `db:"correct_answer"`
	AIScore         int            `db:"ai_score"`
	AIConfidence    int            `db:"ai_confidence"`
	AIFeedback      string         `db:"ai_feedback"`
	AIStrengths     string         `db:"ai_strengths"`
	AIWeaknesses    string         `db:"ai_weaknesses"`
	AIReasoning     string         `db:"ai_reasoning"`
	Degraded        bool           `db:"degraded"`
	NeedsReview     bool           `db:"needs_review"`
	FinalScore      sql.NullInt64  `db:"final_score"`
	TeacherFeedback sql.NullString `db:"teacher_feedback"`
	CreatedAt       int64          `db:"created_at"`
	FinalizedAt     sql.NullInt64  `db:"finalized_at"`
}

func (r *answerRow) toAnswer() (Answer, error) {
	a := Answer{
		ID:                r.ID,
		StudentID:         r.StudentID,
		TeacherID:         r.TeacherID,
		ExerciseID:        r.ExerciseID,
		QuestionNumber:    r.QuestionNumber,
		QuestionText:      r.QuestionText,
		QuestionKind:      QuestionKind(r.QuestionKind),
		StudentAnswerText: r.StudentAnswer,
		CorrectAnswerText: stringPtr(r.CorrectAnswer),
		AIScore:           r.AIScore,
		AIConfidence:      r.AIConfidence,
		AIFeedback:        r.AIFeedback,
		AIReasoning:       r.AIReasoning,
		Degraded:          r.Degraded,
		NeedsReview:       r.NeedsReview,
		FinalScore:        intPtr(r.FinalScore),
		TeacherFeedback:   stringPtr(r.TeacherFeedback),
		CreatedAt:         fromMillis(r.CreatedAt),
		FinalizedAt:       timePtr(r.FinalizedAt),
	}
	if err := decodeStrings(r.AIStrengths, &a.AIStrengths); err != nil {
		return Answer{}, fmt.Errorf("decode strengths of answer %d: %w", r.ID, err)
	}
	if err := decodeStrings(r.AIWeaknesses, &a.AIWeaknesses); err != nil {
		return Answer{}, fmt.Errorf("decode weaknesses of answer %d: %w", r.ID, err)
	}
	return a, nil
}

type answerRepo struct {
	db *sqlx.DB
}

func (r *answerRepo) Create(ctx context.Context, a *Answer) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.QuestionKind == "" {
		a.QuestionKind = KindSubjective
	}
	strengths, err := encodeStrings(a.AIStrengths)
	if err != nil {
		return fmt.Errorf("encode strengths: %w", err)
	}
	weaknesses, err := encodeStrings(a.AIWeaknesses)
	if err != nil {
		return fmt.Errorf("encode weaknesses: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO answers (
			student_id, teacher_id, exercise_id, question_number, question_text,
			question_kind, student_answer, correct_answer, ai_score, ai_confidence,
			ai_feedback, ai_strengths, ai_weaknesses, ai_reasoning, degraded,
			needs_review, final_score, teacher_feedback, created_at, finalized_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.StudentID, a.TeacherID, a.ExerciseID, a.QuestionNumber, a.QuestionText,
		string(a.QuestionKind), a.StudentAnswerText, nullString(a.CorrectAnswerText),
		a.AIScore, a.AIConfidence, a.AIFeedback, strengths, weaknesses, a.AIReasoning,
		a.Degraded, a.NeedsReview, nullInt(a.FinalScore), nullString(a.TeacherFeedback),
		toMillis(a.CreatedAt), nullMillis(a.FinalizedAt),
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get answer insert ID: %w", err)
	}
	a.ID = id
	return nil
}

func (r *answerRepo) Get(ctx context.Context, id int64) (*Answer, error) {
	var row answerRow
	err := r.db.GetContext(ctx, &row, `SELECT `+answerColumns+` FROM answers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer %d: %w", id, err)
	}
	a, err := row.toAnswer()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *answerRepo) ListPending(ctx context.Context, f PendingFilter) ([]Answer, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + answerColumns + ` FROM answers
		WHERE needs_review = 1 AND final_score IS NULL`)
	if f.TeacherID != "" {
		b.WriteString(` AND teacher_id = ?`)
		args = append(args, f.TeacherID)
	}
	if len(f.ExerciseIDs) > 0 {
		b.WriteString(` AND exercise_id IN (?)`)
		args = append(args, f.ExerciseIDs)
	}
	b.WriteString(` ORDER BY ai_confidence ASC, created_at ASC, id ASC`)
	if f.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	query, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	var rows []answerRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list pending answers: %w", err)
	}
	return toAnswers(rows)
}

func (r *answerRepo) Finalize(ctx context.Context, id int64, score int, feedback *string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE answers SET final_score = ?, teacher_feedback = ?, finalized_at = ?
		 WHERE id = ? AND final_score IS NULL`,
		score, nullString(feedback), toMillis(at), id)
	if err != nil {
		return false, fmt.Errorf("finalize answer %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finalize answer %d: %w", id, err)
	}
	return n == 1, nil
}

func toAnswers(rows []answerRow) ([]Answer, error) {
	out := make([]Answer, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toAnswer()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(s string, dst *[]string) error {
	if s == "" {
		*dst = []string{}
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}
