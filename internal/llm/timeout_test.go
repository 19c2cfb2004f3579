package llm

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallingProvider hangs until its context ends for the first stalls calls
// and answers after that.
type stallingProvider struct {
	stalls int32
	calls  atomic.Int32
}

func (p *stallingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	if p.calls.Add(1) <= p.stalls {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &Response{Content: json.RawMessage(`{"ok":true}`), Stop: StopEnd}, nil
}

func (p *stallingProvider) ModelID() string { return "stalling" }

func TestWithTimeout_BoundsAttempt(t *testing.T) {
	p := WithTimeout(&stallingProvider{stalls: 1}, 20*time.Millisecond)

	start := time.Now()
	_, err := p.Generate(t.Context(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "stalling", p.ModelID())
}

func TestWithTimeout_ZeroIsPassthrough(t *testing.T) {
	inner := NewMockProvider()
	assert.Same(t, inner, WithTimeout(inner, 0))
}

func TestRetry_TimedOutAttemptIsRetried(t *testing.T) {
	inner := &stallingProvider{stalls: 1}
	p := WithRetry(WithTimeout(inner, 20*time.Millisecond), fastRetry(3))

	resp, err := p.Generate(t.Context(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Content))
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestRetry_CallerDeadlineEndsRetries(t *testing.T) {
	inner := &stallingProvider{stalls: 10}
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	_, err := WithRetry(inner, fastRetry(5)).Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), inner.calls.Load())
}
