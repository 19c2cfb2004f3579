package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go"
)

// RetryProvider repeats judge calls that failed for transient reasons.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

func WithRetry(p Provider, cfg RetryConfig) Provider {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) ModelID() string { return r.inner.ModelID() }

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var (
		resp   *Response
		policy = retryPolicy{}
	)
	err := retry.Do(
		func() error {
			out, err := r.inner.Generate(ctx, req)
			if err == nil {
				resp = out
				return nil
			}
			if !policy.transient(ctx, err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.config.MaxAttempts)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return r.backoff(int(n), err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// retryPolicy decides per call which failures are worth another attempt.
// A garbled judge reply is retried once; a second one for the same prompt
// ends the call.
type retryPolicy struct {
	garbledSeen bool
}

// An attempt that hit its own deadline is retried while the caller's
// context is still live.
func (p *retryPolicy) transient(ctx context.Context, err error) bool {
	var (
		trunc    *ErrMaxTokensExceeded
		rejected *ErrRejected
		garbled  *ErrInvalidResponse
	)
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &trunc), errors.As(err, &rejected):
		return false
	case errors.As(err, &garbled):
		if p.garbledSeen {
			return false
		}
		p.garbledSeen = true
	}
	return true
}

// backoff is exponential with ±20% jitter, capped at MaxWait. A Retry-After
// from the backend takes precedence.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	base := math.Min(
		float64(r.config.InitialWait)*math.Pow(r.config.Multiplier, float64(attempt)),
		float64(r.config.MaxWait),
	)
	jitter := base * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(math.Max(base+jitter, 0))
}
