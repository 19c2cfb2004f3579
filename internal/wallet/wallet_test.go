package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EberSantana/flowedu-sub004/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordingAwarder fails the first failures calls (or every call when err is
// set) and records the awards it accepted.
type recordingAwarder struct {
	mu       sync.Mutex
	awards   []Award
	attempts int
	failures int
	err      error
}

func (r *recordingAwarder) AwardPoints(_ context.Context, award Award) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.err != nil {
		return r.err
	}
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset")
	}
	r.awards = append(r.awards, award)
	return nil
}

func (r *recordingAwarder) accepted() []Award {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Award(nil), r.awards...)
}

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Tier
	}{
		{0, TierBronze},
		{69, TierBronze},
		{70, TierSilver},
		{89, TierSilver},
		{90, TierGold},
		{100, TierGold},
	}
	for _, tt := range tests {
		if got := TierForScore(tt.score); got != tt.want {
			t.Errorf("TierForScore(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestPointsForScore(t *testing.T) {
	tests := []struct {
		score, max, want int
	}{
		{100, 10, 10},
		{85, 10, 9},
		{84, 10, 8},
		{0, 10, 0},
		{150, 10, 10},
		{-5, 10, 0},
		{50, 0, 0},
	}
	for _, tt := range tests {
		if got := PointsForScore(tt.score, tt.max); got != tt.want {
			t.Errorf("PointsForScore(%d, %d) = %d, want %d", tt.score, tt.max, got, tt.want)
		}
	}
}

func TestService_AwardOncePerAnswer(t *testing.T) {
	s := openTestStore(t)
	remote := &recordingAwarder{}
	svc := NewService(s.Awards(), remote, DefaultConfig(), nil)
	ctx := context.Background()

	award := svc.ForScore("s1", 42, 85)
	require.NoError(t, svc.AwardPoints(ctx, award))
	require.NoError(t, svc.AwardPoints(ctx, award))

	balance, err := svc.Balance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 9, balance)

	ledger, err := svc.Ledger(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(42), ledger[0].AnswerID)
	assert.Contains(t, ledger[0].Reason, "score 85")

	assert.Len(t, remote.accepted(), 1, "duplicate award must not be forwarded")
}

func TestService_RemoteFailureIsReported(t *testing.T) {
	s := openTestStore(t)
	remote := &recordingAwarder{err: errors.New("gateway timeout")}
	svc := NewService(s.Awards(), remote, DefaultConfig(), nil)

	err := svc.AwardPoints(context.Background(), svc.ForScore("s1", 7, 100))
	assert.ErrorContains(t, err, "forward award for answer 7")

	// The ledger line is kept so the student is not credited twice later.
	balance, err := svc.Balance(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestService_RedeliversAfterRemoteFailure(t *testing.T) {
	s := openTestStore(t)
	remote := &recordingAwarder{failures: 1}
	svc := NewService(s.Awards(), remote, DefaultConfig(), nil)
	ctx := context.Background()
	award := svc.ForScore("s1", 7, 100)

	require.Error(t, svc.AwardPoints(ctx, award))
	assert.Empty(t, remote.accepted())

	// The repeat call finds the ledger line already booked and only
	// delivers it.
	require.NoError(t, svc.AwardPoints(ctx, award))
	delivered := remote.accepted()
	require.Len(t, delivered, 1)
	assert.Equal(t, 10, delivered[0].Amount)
	assert.NotZero(t, delivered[0].LedgerID)

	require.NoError(t, svc.AwardPoints(ctx, award))
	assert.Len(t, remote.accepted(), 1, "a delivered line is not sent again")
	assert.Equal(t, 2, remote.attempts)

	balance, err := svc.Balance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestService_ForwardDrainsOutbox(t *testing.T) {
	s := openTestStore(t)
	remote := &recordingAwarder{err: errors.New("service down")}
	svc := NewService(s.Awards(), remote, DefaultConfig(), nil)
	ctx := context.Background()

	require.Error(t, svc.AwardPoints(ctx, svc.ForScore("s1", 1, 80)))
	require.Error(t, svc.AwardPoints(ctx, svc.ForScore("s2", 2, 50)))

	remote.mu.Lock()
	remote.err = nil
	remote.mu.Unlock()

	n, err := svc.Forward(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	delivered := remote.accepted()
	require.Len(t, delivered, 2)
	assert.Equal(t, int64(1), delivered[0].AnswerID)
	assert.Equal(t, int64(2), delivered[1].AnswerID)

	n, err = svc.Forward(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_FinalScoreOverridesGradedAward(t *testing.T) {
	s := openTestStore(t)
	remote := &recordingAwarder{}
	svc := NewService(s.Awards(), remote, DefaultConfig(), nil)
	ctx := context.Background()

	require.NoError(t, svc.AwardPoints(ctx, svc.ForScore("s1", 5, 90)))
	require.NoError(t, svc.AwardPoints(ctx, svc.ForFinalScore("s1", 5, 10)))
	// A replayed graded award must not bring the automatic score back.
	require.NoError(t, svc.AwardPoints(ctx, svc.ForScore("s1", 5, 90)))

	balance, err := svc.Balance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	ledger, err := svc.Ledger(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, store.AwardSourceFinal, ledger[0].Source)
	assert.Equal(t, -8, ledger[0].Amount)
	assert.Contains(t, ledger[0].Reason, "final score 10")

	delivered := remote.accepted()
	require.Len(t, delivered, 2)
	assert.Equal(t, 9, delivered[0].Amount)
	assert.Equal(t, -8, delivered[1].Amount)
	assert.Equal(t, SourceFinal, delivered[1].Source)
}

func TestService_RunForwardsPeriodically(t *testing.T) {
	s := openTestStore(t)
	remote := &recordingAwarder{failures: 1}
	cfg := DefaultConfig()
	cfg.ForwardInterval = 5 * time.Millisecond
	svc := NewService(s.Awards(), remote, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.Error(t, svc.AwardPoints(ctx, svc.ForScore("s1", 3, 70)))

	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(remote.accepted()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestService_ForScoreUsesClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(nil, nil, Config{MaxPointsPerAnswer: 20}, nil)
	svc.now = func() time.Time { return at }

	award := svc.ForScore("s2", 3, 95)
	assert.Equal(t, 19, award.Amount)
	assert.Equal(t, TierGold, award.Tier)
	assert.Equal(t, at, award.AwardedAt)
}

func TestHTTPAwarder_PostsAward(t *testing.T) {
	var (
		gotAward Award
		gotKey   string
		gotAuth  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/points", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotAward))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	h := NewHTTPAwarder(Config{RemoteURL: server.URL, RemoteToken: "secret", Timeout: time.Second})
	defer h.Close()

	err := h.AwardPoints(context.Background(), Award{LedgerID: 17, StudentID: "s1", AnswerID: 42, Amount: 9, Source: SourceGraded})
	require.NoError(t, err)
	assert.Equal(t, "point-award-17", gotKey)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "s1", gotAward.StudentID)
	assert.Equal(t, 9, gotAward.Amount)
}

func TestHTTPAwarder_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	h := NewHTTPAwarder(Config{RemoteURL: server.URL})
	defer h.Close()

	err := h.AwardPoints(context.Background(), Award{StudentID: "s1", AnswerID: 1})
	assert.ErrorContains(t, err, "status 500")
}
