// Package grading turns a student's free-text answer into a scored
// judgment with a confidence, degrading to a reviewable placeholder whenever
// the external judge cannot be trusted.
package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/EberSantana/flowedu-sub004/internal/llm"
	"github.com/EberSantana/flowedu-sub004/internal/metrics"
)

// Feedback texts for the non-judged paths.
const (
	EmptyAnswerFeedback = "empty answer"
	DegradedFeedback    = "automatic analysis unavailable, pending manual review"
)

// Config holds grading configuration.
type Config struct {
	// ConfidenceThreshold routes judgments below it to a teacher.
	ConfidenceThreshold int `mapstructure:"confidence_threshold" validate:"gte=0,lte=100"`

	// Timeout bounds a single judgment including retries.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// BatchConcurrency caps in-flight judge calls for AnalyzeBatch.
	// 1 grades sequentially.
	BatchConcurrency int `mapstructure:"batch_concurrency" validate:"gte=1,lte=32"`

	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=64"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=1"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 70,
		Timeout:             30 * time.Second,
		BatchConcurrency:    5,
		MaxTokens:           1024,
		Temperature:         0.2,
	}
}

// Input is one answer to grade.
type Input struct {
	Question      string
	StudentAnswer string
	CorrectAnswer string // optional reference answer
	Context       string // optional extra context for the judge
}

// Judgment is the outcome of grading one answer.
type Judgment struct {
	Score       int      `json:"score"`
	Confidence  int      `json:"confidence"`
	Feedback    string   `json:"feedback"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	NeedsReview bool     `json:"needsReview"`
	Reasoning   string   `json:"reasoning"`
	Degraded    bool     `json:"degraded"`
}

// judgeOutput is the raw judge response. Numbers are floats so fractional
// or out-of-range values still parse.
type judgeOutput struct {
	Score       float64  `json:"score"`
	Confidence  float64  `json:"confidence"`
	Feedback    string   `json:"feedback"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	NeedsReview bool     `json:"needsReview"`
	Reasoning   string   `json:"reasoning"`
}

// Grader grades answers with an llm.Provider acting as judge.
type Grader struct {
	provider llm.Provider
	cfg      Config
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewGrader creates a Grader. log and m may be nil.
func NewGrader(provider llm.Provider, cfg Config, log *zap.Logger, m *metrics.Metrics) *Grader {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	return &Grader{provider: provider, cfg: cfg, log: log, metrics: m}
}

// Threshold returns the confidence below which answers need review.
func (g *Grader) Threshold() int {
	return g.cfg.ConfidenceThreshold
}

// AnalyzeAnswer grades one answer. It never returns an error: judge failures
// produce a degraded judgment that is routed to a teacher.
func (g *Grader) AnalyzeAnswer(ctx context.Context, in Input) Judgment {
	return g.analyze(llm.WithPurpose(ctx, "grading"), in)
}

// AnalyzeBatch grades inputs with at most Config.BatchConcurrency judge
// calls in flight. The result has one judgment per input, in input order.
func (g *Grader) AnalyzeBatch(ctx context.Context, inputs []Input) []Judgment {
	ctx = llm.WithPurpose(ctx, "batch-grading")
	out := make([]Judgment, len(inputs))
	sem := semaphore.NewWeighted(int64(g.cfg.BatchConcurrency))
	done := make(chan struct{}, len(inputs))

	started := 0
	for i, in := range inputs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled while queued: the rest still get an answer.
			for j := i; j < len(inputs); j++ {
				out[j] = g.degraded(fmt.Errorf("batch cancelled: %w", err), 0)
			}
			break
		}
		started++
		go func(i int, in Input) {
			defer func() {
				sem.Release(1)
				done <- struct{}{}
			}()
			out[i] = g.analyze(ctx, in)
		}(i, in)
	}
	for range started {
		<-done
	}
	return out
}

// GradeObjective compares a closed-form answer with its key. Case and
// surrounding or repeated whitespace are ignored. It never calls the judge.
func (g *Grader) GradeObjective(studentAnswer, correctAnswer string) Judgment {
	if isBlank(studentAnswer) {
		return g.empty()
	}
	j := Judgment{
		Confidence: 100,
		Strengths:  []string{},
		Weaknesses: []string{},
		Reasoning:  "compared with the answer key",
	}
	if normalize(studentAnswer) == normalize(correctAnswer) {
		j.Score = 100
		j.Feedback = "correct"
	} else {
		j.Score = 0
		j.Feedback = "incorrect"
	}
	j.NeedsReview = j.Confidence < g.cfg.ConfidenceThreshold
	g.metrics.ObserveJudgment(metrics.OutcomeObjective, j.Confidence, 0)
	return j
}

func (g *Grader) analyze(ctx context.Context, in Input) Judgment {
	if isBlank(in.StudentAnswer) {
		j := g.empty()
		g.metrics.ObserveJudgment(metrics.OutcomeEmpty, j.Confidence, 0)
		return j
	}

	start := time.Now()
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	j, err := g.judge(ctx, in)
	elapsed := time.Since(start)
	if err != nil {
		g.metrics.ObserveJudgment(metrics.OutcomeDegraded, 0, elapsed)
		return g.degraded(err, elapsed)
	}
	g.metrics.ObserveJudgment(metrics.OutcomeJudged, j.Confidence, elapsed)
	return j
}

func (g *Grader) judge(ctx context.Context, in Input) (Judgment, error) {
	userMsg, err := buildUserMessage(in)
	if err != nil {
		return Judgment{}, fmt.Errorf("build judgment prompt: %w", err)
	}

	req := llm.Prompt(systemPrompt, userMsg)
	req.Schema = JudgmentSchema
	req.MaxTokens = g.cfg.MaxTokens
	req.Temperature = g.cfg.Temperature

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return Judgment{}, fmt.Errorf("judge call: %w", err)
	}

	var raw judgeOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return Judgment{}, fmt.Errorf("parse judgment: %w", err)
	}

	j := Judgment{
		Score:      clampScore(raw.Score),
		Confidence: clampScore(raw.Confidence),
		Feedback:   strings.TrimSpace(raw.Feedback),
		Strengths:  nonNil(raw.Strengths),
		Weaknesses: nonNil(raw.Weaknesses),
		Reasoning:  strings.TrimSpace(raw.Reasoning),
	}
	// The judge's own flag is advisory only.
	j.NeedsReview = j.Confidence < g.cfg.ConfidenceThreshold
	return j, nil
}

func (g *Grader) empty() Judgment {
	return Judgment{
		Score:       0,
		Confidence:  100,
		Feedback:    EmptyAnswerFeedback,
		Strengths:   []string{},
		Weaknesses:  []string{},
		NeedsReview: false,
	}
}

func (g *Grader) degraded(err error, elapsed time.Duration) Judgment {
	g.log.Warn("judgment degraded", zap.Error(err), zap.Duration("elapsed", elapsed))
	return Judgment{
		Score:       50,
		Confidence:  0,
		Feedback:    DegradedFeedback,
		Strengths:   []string{},
		Weaknesses:  []string{},
		NeedsReview: true,
		Degraded:    true,
	}
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return int(r)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
