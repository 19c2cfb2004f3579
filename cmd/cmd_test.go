package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EberSantana/flowedu-sub004/internal/grading"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

const testExercises = `
exercises:
  - id: geo-01
    teacher: t1
    title: Capitals
    questions:
      - {number: 1, text: "What is the capital of France?", kind: objective, answer: Paris}
      - {number: 2, text: "Why did Paris become the capital?"}
`

type cliEnv struct {
	dir    string
	db     string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("llm:\n  provider: mock\nlog:\n  file: \"\"\n  console: false\n"), 0o600))
	return &cliEnv{dir: dir, db: filepath.Join(dir, "flowedu.db"), config: cfgPath}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append(args, "--config", e.config, "--db", e.db))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "flowedu (devel)\n", buf.String())
}

func TestExercisesImportAndList(t *testing.T) {
	e := newCLIEnv(t)
	file := filepath.Join(e.dir, "exercises.yaml")
	require.NoError(t, os.WriteFile(file, []byte(testExercises), 0o600))

	out, err := e.run(t, "exercises", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "geo-01")
	assert.Contains(t, out, "Imported 1 exercises.")

	out, err = e.run(t, "exercises", "list", "--teacher", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Capitals")
}

func TestGradeObjectiveJSON(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run(t, "grade", "--objective", "-q", "Capital of France?", "-a", " paris ", "--correct", "Paris", "--json")
	require.NoError(t, err)

	var j grading.Judgment
	require.NoError(t, json.Unmarshal([]byte(out), &j))
	assert.Equal(t, 100, j.Score)
	assert.Equal(t, 100, j.Confidence)
	assert.False(t, j.NeedsReview)
}

func TestPendingFinalizeAndStats(t *testing.T) {
	e := newCLIEnv(t)

	st, err := store.Open(e.db)
	require.NoError(t, err)
	a := &store.Answer{
		StudentID:         "s1",
		TeacherID:         "t1",
		ExerciseID:        "geo-01",
		QuestionNumber:    2,
		QuestionText:      "Why did Paris become the capital?",
		QuestionKind:      store.KindSubjective,
		StudentAnswerText: "Because of the river.",
		AIScore:           60,
		AIConfidence:      40,
		NeedsReview:       true,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, st.Answers().Create(context.Background(), a))
	require.NoError(t, st.Close())
	id := strconv.FormatInt(a.ID, 10)

	out, err := e.run(t, "pending", "--teacher", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Because of the river.")
	assert.Contains(t, out, "1 pending")

	out, err = e.run(t, "finalize", id, "--score", "85")
	require.NoError(t, err)
	assert.Contains(t, out, "finalized at 85")

	_, err = e.run(t, "finalize", id, "--score", "40")
	assert.Error(t, err)

	out, err = e.run(t, "pending", "--teacher", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "No answers waiting for review.")

	out, err = e.run(t, "stats", "--student", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Reviews:      0")
	assert.Contains(t, out, "Points:")
}

func TestReviewRejectsUnknownRating(t *testing.T) {
	e := newCLIEnv(t)
	_, err := e.run(t, "review", "1", "--rating", "perfect")
	assert.ErrorContains(t, err, "invalid --rating")
}

func TestReviewSittingSummary(t *testing.T) {
	e := newCLIEnv(t)

	st, err := store.Open(e.db)
	require.NoError(t, err)
	var ids []string
	for answerID := int64(1); answerID <= 2; answerID++ {
		item := &store.QueueItem{
			StudentID:    "s1",
			ExerciseID:   "geo-01",
			AnswerID:     answerID,
			SuccessRate:  60,
			IntervalDays: 1,
			EaseFactor:   2.5,
			Status:       store.QueueStatusScheduled,
			NextReviewAt: time.Now().Add(-time.Hour),
			CreatedAt:    time.Now().Add(-25 * time.Hour),
		}
		_, err := st.Queue().Create(context.Background(), item)
		require.NoError(t, err)
		ids = append(ids, strconv.FormatInt(item.ID, 10))
	}
	require.NoError(t, st.Close())

	args := append([]string{"review"}, ids...)
	out, err := e.run(t, append(args, "--student", "s1", "--correct", "--rating", "good", "--seconds", "30")...)
	require.NoError(t, err)
	assert.Contains(t, out, "item "+ids[0]+": next review")
	assert.Contains(t, out, "item "+ids[1]+": next review")
	assert.Contains(t, out, "2 reviewed, 2 correct (100%)")
	assert.Contains(t, out, "time 1m0s")
	assert.Contains(t, out, "good 2")
}

func TestLLMCallInspection(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run(t, "llm", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "No judge usage recorded yet.")

	st, err := store.Open(e.db)
	require.NoError(t, err)
	require.NoError(t, st.JudgeCalls().AppendJudgeCall(context.Background(), store.JudgeCallEventData{
		RequestID:    "req-1",
		Provider:     "anthropic",
		Model:        "claude-haiku-4-5-20251001",
		Purpose:      "grading",
		LatencyMs:    420,
		Success:      true,
		InputTokens:  1_000_000,
		OutputTokens: 200_000,
		RequestBody:  "[user]\nWhy did Paris become the capital?",
		ResponseBody: `{"score":70}`,
	}))
	require.NoError(t, st.Close())

	out, err = e.run(t, "llm", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "claude-haiku-4-5-20251001")
	assert.Contains(t, out, "grading")

	out, err = e.run(t, "llm", "view", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "req-1")
	assert.Contains(t, out, "Why did Paris become the capital?")

	out, err = e.run(t, "llm", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "$2.00")

	_, err = e.run(t, "llm", "view", "99")
	assert.ErrorContains(t, err, "judge call 99 not found")
}
