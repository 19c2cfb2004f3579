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

const judgeCallColumns = `id, request_id, provider, model, purpose, input_tokens,
	output_tokens, latency_ms, success, error_message, request_body,
	response_body, created_at`

type judgeCallRow struct {
	ID           int64  `db:"id"`
	RequestID    string `db:"request_id"`
	Provider     string `db:"provider"`
	Model        string `db:"model"`
	Purpose      string `db:"purpose"`
	InputTokens  int    `db:"input_tokens"`
	OutputTokens int    `db:"output_tokens"`
	LatencyMs    int64  `db:"latency_ms"`
	Success      bool   `db:"success"`
	ErrorMessage string `db:"error_message"`
	RequestBody  string `db:"request_body"`
	ResponseBody string `db:"response_body"`
	CreatedAt    int64  `db:"created_at"`
}

func (r *judgeCallRow) toRecord() JudgeCallRecord {
	return JudgeCallRecord{
		ID:        r.ID,
		Timestamp: fromMillis(r.CreatedAt),
		JudgeCallEventData: JudgeCallEventData{
			RequestID:    r.RequestID,
			Provider:     r.Provider,
			Model:        r.Model,
			Purpose:      r.Purpose,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			LatencyMs:    r.LatencyMs,
			Success:      r.Success,
			ErrorMessage: r.ErrorMessage,
			RequestBody:  r.RequestBody,
			ResponseBody: r.ResponseBody,
		},
	}
}

// judgeCallRepo implements JudgeCallRepo.
type judgeCallRepo struct {
	db *sqlx.DB
}

func (r *judgeCallRepo) AppendJudgeCall(ctx context.Context, data JudgeCallEventData) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO judge_calls (
			request_id, provider, model, purpose, input_tokens, output_tokens,
			latency_ms, success, error_message, request_body, response_body, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		data.RequestID, data.Provider, data.Model, data.Purpose, data.InputTokens,
		data.OutputTokens, data.LatencyMs, data.Success, data.ErrorMessage,
		data.RequestBody, data.ResponseBody, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save judge call event: %w", err)
	}
	return nil
}

func (r *judgeCallRepo) QueryJudgeCalls(ctx context.Context, opts QueryOpts) ([]JudgeCallRecord, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + judgeCallColumns + ` FROM judge_calls WHERE 1 = 1`)
	if opts.Purpose != "" {
		b.WriteString(` AND purpose = ?`)
		args = append(args, opts.Purpose)
	}
	if !opts.From.IsZero() {
		b.WriteString(` AND created_at >= ?`)
		args = append(args, toMillis(opts.From))
	}
	if !opts.To.IsZero() {
		b.WriteString(` AND created_at <= ?`)
		args = append(args, toMillis(opts.To))
	}
	b.WriteString(` ORDER BY id DESC`)
	if opts.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	var rows []judgeCallRow
	if err := r.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("query judge calls: %w", err)
	}
	records := make([]JudgeCallRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].toRecord()
	}
	return records, nil
}

func (r *judgeCallRepo) GetJudgeCall(ctx context.Context, id int64) (*JudgeCallRecord, error) {
	var row judgeCallRow
	err := r.db.GetContext(ctx, &row, `SELECT `+judgeCallColumns+` FROM judge_calls WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get judge call %d: %w", id, err)
	}
	rec := row.toRecord()
	return &rec, nil
}

func (r *judgeCallRepo) UsageByPurpose(ctx context.Context) ([]JudgeUsage, error) {
	return r.usage(ctx, "purpose")
}

func (r *judgeCallRepo) UsageByModel(ctx context.Context) ([]JudgeUsage, error) {
	return r.usage(ctx, "model")
}

// usage aggregates by a fixed column name; column is never user input.
func (r *judgeCallRepo) usage(ctx context.Context, column string) ([]JudgeUsage, error) {
	query := fmt.Sprintf(`SELECT %s AS usage_key,
			COUNT(*) AS calls,
			COALESCE(SUM(input_tokens), 0) AS input_tokens,
			COALESCE(SUM(output_tokens), 0) AS output_tokens,
			CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER) AS avg_latency_ms
		FROM judge_calls GROUP BY %s ORDER BY calls DESC, usage_key ASC`, column, column)

	var rows []struct {
		Key          string `db:"usage_key"`
		Calls        int    `db:"calls"`
		InputTokens  int    `db:"input_tokens"`
		OutputTokens int    `db:"output_tokens"`
		AvgLatencyMs int64  `db:"avg_latency_ms"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("aggregate judge calls by %s: %w", column, err)
	}
	out := make([]JudgeUsage, len(rows))
	for i, row := range rows {
		out[i] = JudgeUsage(row)
	}
	return out, nil
}
