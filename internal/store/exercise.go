package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type exerciseRow struct {
	ID        string `db:"id"`
	TeacherID string `db:"teacher_id"`
	Title     string `db:"title"`
	CreatedAt int64  `db:"created_at"`
}

func (r *exerciseRow) toExercise() Exercise {
	return Exercise{
		ID:        r.ID,
		TeacherID: r.TeacherID,
		Title:     r.Title,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

type questionRow struct {
	ExerciseID    string         `db:"exercise_id"`
	Number        int            `db:"number"`
	Text          string         `db:"text"`
	Kind          string         `db:"kind"`
	Options       string         `db:"options"`
	CorrectAnswer sql.NullString `db:"correct_answer"`
	Points        int            `db:"points"`
}

func (r *questionRow) toQuestion() (Question, error) {
	q := Question{
		ExerciseID:    r.ExerciseID,
		Number:        r.Number,
		Text:          r.Text,
		Kind:          QuestionKind(r.Kind),
		CorrectAnswer: stringPtr(r.CorrectAnswer),
		Points:        r.Points,
	}
	if err := decodeStrings(r.Options, &q.Options); err != nil {
		return Question{}, fmt.Errorf("decode options of %s#%d: %w", r.ExerciseID, r.Number, err)
	}
	return q, nil
}

type exerciseRepo struct {
	db *sqlx.DB
}

func (r *exerciseRepo) Upsert(ctx context.Context, ex *Exercise) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	return runInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO exercises (id, teacher_id, title, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET teacher_id = excluded.teacher_id, title = excluded.title`,
			ex.ID, ex.TeacherID, ex.Title, toMillis(ex.CreatedAt))
		if err != nil {
			return fmt.Errorf("upsert exercise %s: %w", ex.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exercise_id = ?`, ex.ID); err != nil {
			return fmt.Errorf("clear questions of %s: %w", ex.ID, err)
		}
		for i := range ex.Questions {
			q := &ex.Questions[i]
			q.ExerciseID = ex.ID
			opts, err := encodeStrings(q.Options)
			if err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO questions
				(exercise_id, number, text, kind, options, correct_answer, points)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				ex.ID, q.Number, q.Text, string(q.Kind), opts, nullString(q.CorrectAnswer), q.Points)
			if err != nil {
				return fmt.Errorf("insert question %s#%d: %w", ex.ID, q.Number, err)
			}
		}
		return nil
	})
}

func (r *exerciseRepo) Get(ctx context.Context, id string) (*Exercise, error) {
	var row exerciseRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, teacher_id, title, created_at FROM exercises WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise %s: %w", id, err)
	}

	ex := row.toExercise()
	var qrows []questionRow
	err = r.db.SelectContext(ctx, &qrows, `SELECT exercise_id, number, text, kind, options,
		correct_answer, points FROM questions WHERE exercise_id = ? ORDER BY number`, id)
	if err != nil {
		return nil, fmt.Errorf("load questions of %s: %w", id, err)
	}
	for i := range qrows {
		q, err := qrows[i].toQuestion()
		if err != nil {
			return nil, err
		}
		ex.Questions = append(ex.Questions, q)
	}
	return &ex, nil
}

func (r *exerciseRepo) Question(ctx context.Context, exerciseID string, number int) (*Question, *Exercise, error) {
	ex, err := r.Get(ctx, exerciseID)
	if err != nil {
		return nil, nil, err
	}
	for i := range ex.Questions {
		if ex.Questions[i].Number == number {
			return &ex.Questions[i], ex, nil
		}
	}
	return nil, ex, ErrNotFound
}

func (r *exerciseRepo) List(ctx context.Context, teacherID string) ([]Exercise, error) {
	query := `SELECT id, teacher_id, title, created_at FROM exercises`
	var args []any
	if teacherID != "" {
		query += ` WHERE teacher_id = ?`
		args = append(args, teacherID)
	}
	query += ` ORDER BY id`

	var rows []exerciseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	out := make([]Exercise, len(rows))
	for i := range rows {
		out[i] = rows[i].toExercise()
	}
	return out, nil
}
