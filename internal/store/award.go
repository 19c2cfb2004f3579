package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type awardRow struct {
	ID          int64         `db:"id"`
	StudentID   string        `db:"student_id"`
	AnswerID    int64         `db:"answer_id"`
	Source      string        `db:"source"`
	Amount      int           `db:"amount"`
	Reason      string        `db:"reason"`
	CreatedAt   int64         `db:"created_at"`
	ForwardedAt sql.NullInt64 `db:"forwarded_at"`
}

func (row awardRow) toAward() PointAward {
	return PointAward{
		ID:          row.ID,
		StudentID:   row.StudentID,
		AnswerID:    row.AnswerID,
		Source:      row.Source,
		Amount:      row.Amount,
		Reason:      row.Reason,
		CreatedAt:   fromMillis(row.CreatedAt),
		ForwardedAt: timePtr(row.ForwardedAt),
	}
}

const awardColumns = `id, student_id, answer_id, source, amount, reason, created_at, forwarded_at`

type awardRepo struct {
	db *sqlx.DB
}

func (r *awardRepo) Settle(ctx context.Context, award *PointAward) (bool, error) {
	if award.Source == "" {
		award.Source = AwardSourceGraded
	}
	if award.CreatedAt.IsZero() {
		award.CreatedAt = time.Now()
	}

	var created bool
	err := runInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		var sources []string
		if err := tx.SelectContext(ctx, &sources,
			`SELECT source FROM point_awards WHERE answer_id = ?`, award.AnswerID); err != nil {
			return fmt.Errorf("load awards of answer %d: %w", award.AnswerID, err)
		}
		for _, src := range sources {
			if src == award.Source || src == AwardSourceFinal {
				return nil
			}
		}

		var held int
		if err := tx.GetContext(ctx, &held,
			`SELECT COALESCE(SUM(amount), 0) FROM point_awards WHERE answer_id = ?`, award.AnswerID); err != nil {
			return fmt.Errorf("sum awards of answer %d: %w", award.AnswerID, err)
		}
		delta := award.Amount - held

		res, err := tx.ExecContext(ctx,
			`INSERT INTO point_awards (student_id, answer_id, source, amount, reason, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			award.StudentID, award.AnswerID, award.Source, delta, award.Reason, toMillis(award.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert point award: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			award.ID = id
		}
		award.Amount = delta
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("settle point award: %w", err)
	}
	return created, nil
}

func (r *awardRepo) ListByStudent(ctx context.Context, studentID string) ([]PointAward, error) {
	var rows []awardRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+awardColumns+`
		 FROM point_awards WHERE student_id = ? ORDER BY created_at DESC, id DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list point awards: %w", err)
	}
	awards := make([]PointAward, len(rows))
	for i, row := range rows {
		awards[i] = row.toAward()
	}
	return awards, nil
}

func (r *awardRepo) Balance(ctx context.Context, studentID string) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(amount), 0) FROM point_awards WHERE student_id = ?`, studentID)
	if err != nil {
		return 0, fmt.Errorf("sum point awards: %w", err)
	}
	return total, nil
}

func (r *awardRepo) Unforwarded(ctx context.Context, answerID int64, limit int) ([]PointAward, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []awardRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+awardColumns+`
		 FROM point_awards
		 WHERE forwarded_at IS NULL AND (? = 0 OR answer_id = ?)
		 ORDER BY id ASC LIMIT ?`, answerID, answerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unforwarded point awards: %w", err)
	}
	awards := make([]PointAward, len(rows))
	for i, row := range rows {
		awards[i] = row.toAward()
	}
	return awards, nil
}

func (r *awardRepo) MarkForwarded(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE point_awards SET forwarded_at = ? WHERE id = ? AND forwarded_at IS NULL`,
		toMillis(at), id)
	if err != nil {
		return fmt.Errorf("mark point award %d forwarded: %w", id, err)
	}
	return nil
}
