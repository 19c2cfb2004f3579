package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const historyColumns = `id, sequence, queue_item_id, student_id, was_correct,
	time_spent_seconds, self_rating, notes, interval_days, ease_factor, reviewed_at`

type historyRow struct {
	ID               int64          `db:"id"`
	Sequence         int64          `db:"sequence"`
	QueueItemID      int64          `db:"queue_item_id"`
	StudentID        string         `db:"student_id"`
	WasCorrect       bool           `db:"was_correct"`
	TimeSpentSeconds int            `db:"time_spent_seconds"`
	SelfRating       string         `db:"self_rating"`
	Notes            sql.NullString `db:"notes"`
	IntervalDays     int            `db:"interval_days"`
	EaseFactor       float64        `db:"ease_factor"`
	ReviewedAt       int64          `db:"reviewed_at"`
}

func (r *historyRow) toEntry() HistoryEntry {
	return HistoryEntry{
		ID:               r.ID,
		Sequence:         r.Sequence,
		QueueItemID:      r.QueueItemID,
		StudentID:        r.StudentID,
		WasCorrect:       r.WasCorrect,
		TimeSpentSeconds: r.TimeSpentSeconds,
		SelfRating:       r.SelfRating,
		Notes:            stringPtr(r.Notes),
		IntervalDays:     r.IntervalDays,
		EaseFactor:       r.EaseFactor,
		ReviewedAt:       fromMillis(r.ReviewedAt),
	}
}

type historyRepo struct {
	db *sqlx.DB
}

func (r *historyRepo) ListByStudent(ctx context.Context, studentID string, opts QueryOpts) ([]HistoryEntry, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + historyColumns + ` FROM review_history WHERE student_id = ?`)
	args = append(args, studentID)
	if !opts.From.IsZero() {
		b.WriteString(` AND reviewed_at >= ?`)
		args = append(args, toMillis(opts.From))
	}
	if !opts.To.IsZero() {
		b.WriteString(` AND reviewed_at <= ?`)
		args = append(args, toMillis(opts.To))
	}
	b.WriteString(` ORDER BY reviewed_at DESC, sequence DESC`)
	if opts.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}
	return r.selectEntries(ctx, b.String(), args...)
}

func (r *historyRepo) RecentForItem(ctx context.Context, queueItemID int64, n int) ([]HistoryEntry, error) {
	return r.selectEntries(ctx,
		`SELECT `+historyColumns+` FROM review_history
		 WHERE queue_item_id = ? ORDER BY sequence DESC LIMIT ?`,
		queueItemID, n)
}

func (r *historyRepo) selectEntries(ctx context.Context, query string, args ...any) ([]HistoryEntry, error) {
	var rows []historyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query review history: %w", err)
	}
	entries := make([]HistoryEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toEntry()
	}
	return entries, nil
}
