package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/EberSantana/flowedu-sub004/internal/store"
)

type recordingJudgeCallRepo struct {
	mu     sync.Mutex
	events []store.JudgeCallEventData
	err    error
}

func (r *recordingJudgeCallRepo) AppendJudgeCall(_ context.Context, data store.JudgeCallEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func (r *recordingJudgeCallRepo) QueryJudgeCalls(context.Context, store.QueryOpts) ([]store.JudgeCallRecord, error) {
	return nil, nil
}

func (r *recordingJudgeCallRepo) GetJudgeCall(context.Context, int64) (*store.JudgeCallRecord, error) {
	return nil, store.ErrNotFound
}

func (r *recordingJudgeCallRepo) UsageByPurpose(context.Context) ([]store.JudgeUsage, error) {
	return nil, nil
}

func (r *recordingJudgeCallRepo) UsageByModel(context.Context) ([]store.JudgeUsage, error) {
	return nil, nil
}

func TestLogging_RecordsSuccess(t *testing.T) {
	repo := &recordingJudgeCallRepo{}
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"score":90}`),
		Usage:   Usage{InputTokens: 12, OutputTokens: 3},
	})
	p := WithLogging(mock, "mock", repo, zaptest.NewLogger(t))

	ctx := WithPurpose(context.Background(), "grading")
	_, err := p.Generate(ctx, Request{System: "sys", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.True(t, ev.Success)
	assert.Equal(t, "grading", ev.Purpose)
	assert.Equal(t, "mock", ev.Provider)
	assert.Equal(t, 12, ev.InputTokens)
	assert.NotEmpty(t, ev.RequestID)
	assert.Contains(t, ev.RequestBody, "[system]\nsys")
	assert.Equal(t, `{"score":90}`, ev.ResponseBody)
}

func TestLogging_RecordsFailureAndSurvivesRepoError(t *testing.T) {
	repo := &recordingJudgeCallRepo{err: errors.New("disk full")}
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	p := WithLogging(mock, "mock", repo, zaptest.NewLogger(t))

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	require.ErrorAs(t, err, &unavail)

	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].Success)
	assert.Equal(t, "unknown", repo.events[0].Purpose)
	assert.Contains(t, repo.events[0].ErrorMessage, "down")
}

func TestLogging_NilRepo(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	p := WithLogging(mock, "mock", nil, nil)

	_, err := p.Generate(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())
}
