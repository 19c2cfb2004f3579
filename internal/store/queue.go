package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const queueColumns = `id, student_id, exercise_id, answer_id, review_count,
	correct_count, success_rate, interval_days, ease_factor, difficulty_score,
	priority, status, next_review_at, last_reviewed_at, mastered_at, version,
	created_at`

type queueRow struct {
	ID              int64         `db:"id"`
	StudentID       string        `db:"student_id"`
	ExerciseID      string        `db:"exercise_id"`
	AnswerID        int64         `db:"answer_id"`
	ReviewCount     int           `db:"review_count"`
	CorrectCount    int           `db:"correct_count"`
	SuccessRate     float64       `db:"success_rate"`
	IntervalDays    int           `db:"interval_days"`
	EaseFactor      float64       `db:"ease_factor"`
	DifficultyScore float64       `db:"difficulty_score"`
	Priority        int           `db:"priority"`
	Status          string        `db:"status"`
	NextReviewAt    int64         `db:"next_review_at"`
	LastReviewedAt  sql.NullInt64 `db:"last_reviewed_at"`
	MasteredAt      sql.NullInt64 `db:"mastered_at"`
	Version         int64         `db:"version"`
	CreatedAt       int64         `db:"created_at"`
}

func (r *queueRow) toItem() QueueItem {
	return QueueItem{
		ID:              r.ID,
		StudentID:       r.StudentID,
		ExerciseID:      r.ExerciseID,
		AnswerID:        r.AnswerID,
		ReviewCount:     r.ReviewCount,
		CorrectCount:    r.CorrectCount,
		SuccessRate:     r.SuccessRate,
		IntervalDays:    r.IntervalDays,
		EaseFactor:      r.EaseFactor,
		DifficultyScore: r.DifficultyScore,
		Priority:        r.Priority,
		Status:          r.Status,
		NextReviewAt:    fromMillis(r.NextReviewAt),
		LastReviewedAt:  timePtr(r.LastReviewedAt),
		MasteredAt:      timePtr(r.MasteredAt),
		Version:         r.Version,
		CreatedAt:       fromMillis(r.CreatedAt),
	}
}

type queueRepo struct {
	db  *sqlx.DB
	seq *sequenceCounter
}

func (r *queueRepo) Create(ctx context.Context, item *QueueItem) (bool, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Status == "" {
		item.Status = QueueStatusScheduled
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO review_queue (
			student_id, exercise_id, answer_id, review_count, correct_count,
			success_rate, interval_days, ease_factor, difficulty_score, priority,
			status, next_review_at, last_reviewed_at, mastered_at, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (student_id, answer_id) DO NOTHING`,
		item.StudentID, item.ExerciseID, item.AnswerID, item.ReviewCount, item.CorrectCount,
		item.SuccessRate, item.IntervalDays, item.EaseFactor, item.DifficultyScore, item.Priority,
		item.Status, toMillis(item.NextReviewAt), nullMillis(item.LastReviewedAt),
		nullMillis(item.MasteredAt), toMillis(item.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert queue item: %w", err)
	}

	stored, err := r.GetByAnswer(ctx, item.StudentID, item.AnswerID)
	if err != nil {
		return false, err
	}
	*item = *stored
	return n == 1, nil
}

func (r *queueRepo) Get(ctx context.Context, id int64) (*QueueItem, error) {
	return r.getOne(ctx, `SELECT `+queueColumns+` FROM review_queue WHERE id = ?`, id)
}

func (r *queueRepo) GetByAnswer(ctx context.Context, studentID string, answerID int64) (*QueueItem, error) {
	return r.getOne(ctx,
		`SELECT `+queueColumns+` FROM review_queue WHERE student_id = ? AND answer_id = ?`,
		studentID, answerID)
}

func (r *queueRepo) getOne(ctx context.Context, query string, args ...any) (*QueueItem, error) {
	var row queueRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	item := row.toItem()
	return &item, nil
}

func (r *queueRepo) List(ctx context.Context, f QueueFilter) ([]QueueItem, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + queueColumns + ` FROM review_queue WHERE student_id = ?`)
	args = append(args, f.StudentID)
	if f.ExerciseID != "" {
		b.WriteString(` AND exercise_id = ?`)
		args = append(args, f.ExerciseID)
	}
	if !f.DueBefore.IsZero() {
		b.WriteString(` AND next_review_at <= ?`)
		args = append(args, toMillis(f.DueBefore))
	}
	if len(f.Statuses) > 0 {
		b.WriteString(` AND status IN (?)`)
		args = append(args, f.Statuses)
	}
	b.WriteString(` ORDER BY next_review_at ASC, id ASC`)

	query, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("build queue query: %w", err)
	}

	var rows []queueRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	items := make([]QueueItem, len(rows))
	for i := range rows {
		items[i] = rows[i].toItem()
	}
	return items, nil
}

func (r *queueRepo) Update(ctx context.Context, item *QueueItem) error {
	prev := item.Version
	err := runInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		return updateItem(ctx, tx, item)
	})
	if err != nil {
		item.Version = prev
	}
	return err
}

func (r *queueRepo) RecordReview(ctx context.Context, item *QueueItem, entry *HistoryEntry) error {
	prev := item.Version
	err := runInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := updateItem(ctx, tx, item); err != nil {
			return err
		}

		seq, err := r.seq.Next(ctx, tx)
		if err != nil {
			return err
		}
		entry.Sequence = seq
		entry.QueueItemID = item.ID

		res, err := tx.ExecContext(ctx, `INSERT INTO review_history (
				sequence, queue_item_id, student_id, was_correct, time_spent_seconds,
				self_rating, notes, interval_days, ease_factor, reviewed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.Sequence, entry.QueueItemID, entry.StudentID, entry.WasCorrect,
			entry.TimeSpentSeconds, entry.SelfRating, nullString(entry.Notes),
			entry.IntervalDays, entry.EaseFactor, toMillis(entry.ReviewedAt),
		)
		if err != nil {
			return fmt.Errorf("insert review history: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("get history insert ID: %w", err)
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		item.Version = prev
	}
	return err
}

// updateItem writes the mutable fields of item guarded by its version and
// advances item.Version on success.
func updateItem(ctx context.Context, tx *sqlx.Tx, item *QueueItem) error {
	res, err := tx.ExecContext(ctx, `UPDATE review_queue SET
			review_count = ?, correct_count = ?, success_rate = ?, interval_days = ?,
			ease_factor = ?, difficulty_score = ?, priority = ?, status = ?,
			next_review_at = ?, last_reviewed_at = ?, mastered_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		item.ReviewCount, item.CorrectCount, item.SuccessRate, item.IntervalDays,
		item.EaseFactor, item.DifficultyScore, item.Priority, item.Status,
		toMillis(item.NextReviewAt), nullMillis(item.LastReviewedAt), nullMillis(item.MasteredAt),
		item.ID, item.Version,
	)
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update queue item %d at version %d: %w", item.ID, item.Version, ErrVersionConflict)
	}
	item.Version++
	return nil
}
