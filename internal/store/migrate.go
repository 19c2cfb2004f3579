package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied on every Open. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS answers (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id       TEXT    NOT NULL,
		teacher_id       TEXT    NOT NULL DEFAULT '',
		exercise_id      TEXT    NOT NULL,
		question_number  INTEGER NOT NULL,
		question_text    TEXT    NOT NULL DEFAULT '',
		question_kind    TEXT    NOT NULL DEFAULT 'subjective',
		student_answer   TEXT    NOT NULL,
		correct_answer   TEXT,
		ai_score         INTEGER NOT NULL,
		ai_confidence    INTEGER NOT NULL,
		ai_feedback      TEXT    NOT NULL DEFAULT '',
		ai_strengths     TEXT    NOT NULL DEFAULT '[]',
		ai_weaknesses    TEXT    NOT NULL DEFAULT '[]',
		ai_reasoning     TEXT    NOT NULL DEFAULT '',
		degraded         INTEGER NOT NULL DEFAULT 0,
		needs_review     INTEGER NOT NULL,
		final_score      INTEGER,
		teacher_feedback TEXT,
		created_at       INTEGER NOT NULL,
		finalized_at     INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_pending
		ON answers (teacher_id, needs_review, final_score, ai_confidence, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_student ON answers (student_id)`,

	`CREATE TABLE IF NOT EXISTS review_queue (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id       TEXT    NOT NULL,
		exercise_id      TEXT    NOT NULL,
		answer_id        INTEGER NOT NULL REFERENCES answers (id),
		review_count     INTEGER NOT NULL DEFAULT 0,
		correct_count    INTEGER NOT NULL DEFAULT 0,
		success_rate     REAL    NOT NULL,
		interval_days    INTEGER NOT NULL CHECK (interval_days >= 1),
		ease_factor      REAL    NOT NULL CHECK (ease_factor >= 1.3),
		difficulty_score REAL    NOT NULL,
		priority         INTEGER NOT NULL DEFAULT 0,
		status           TEXT    NOT NULL DEFAULT 'scheduled',
		next_review_at   INTEGER NOT NULL,
		last_reviewed_at INTEGER,
		mastered_at      INTEGER,
		version          INTEGER NOT NULL DEFAULT 1,
		created_at       INTEGER NOT NULL,
		UNIQUE (student_id, answer_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_due ON review_queue (student_id, status, next_review_at)`,

	`CREATE TABLE IF NOT EXISTS review_history (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence           INTEGER NOT NULL UNIQUE,
		queue_item_id      INTEGER NOT NULL REFERENCES review_queue (id),
		student_id         TEXT    NOT NULL,
		was_correct        INTEGER NOT NULL,
		time_spent_seconds INTEGER NOT NULL,
		self_rating        TEXT    NOT NULL,
		notes              TEXT,
		interval_days      INTEGER NOT NULL,
		ease_factor        REAL    NOT NULL,
		reviewed_at        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_student ON review_history (student_id, reviewed_at, sequence)`,
	`CREATE INDEX IF NOT EXISTS idx_history_item ON review_history (queue_item_id, sequence)`,

	`CREATE TABLE IF NOT EXISTS point_awards (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id   TEXT    NOT NULL,
		answer_id    INTEGER NOT NULL,
		source       TEXT    NOT NULL CHECK (source IN ('graded', 'final')),
		amount       INTEGER NOT NULL,
		reason       TEXT    NOT NULL,
		created_at   INTEGER NOT NULL,
		forwarded_at INTEGER,
		UNIQUE (answer_id, source)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_point_awards_outbox ON point_awards (forwarded_at, id)`,

	`CREATE TABLE IF NOT EXISTS judge_calls (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id    TEXT    NOT NULL,
		provider      TEXT    NOT NULL,
		model         TEXT    NOT NULL,
		purpose       TEXT    NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL,
		error_message TEXT    NOT NULL DEFAULT '',
		request_body  TEXT    NOT NULL DEFAULT '',
		response_body TEXT    NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_judge_calls_purpose ON judge_calls (purpose)`,

	`CREATE TABLE IF NOT EXISTS exercises (
		id         TEXT    PRIMARY KEY,
		teacher_id TEXT    NOT NULL,
		title      TEXT    NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		exercise_id    TEXT    NOT NULL REFERENCES exercises (id),
		number         INTEGER NOT NULL,
		text           TEXT    NOT NULL,
		kind           TEXT    NOT NULL,
		options        TEXT    NOT NULL DEFAULT '[]',
		correct_answer TEXT,
		points         INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (exercise_id, number)
	)`,
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
