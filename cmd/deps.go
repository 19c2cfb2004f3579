package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/exercise"
	"github.com/EberSantana/flowedu-sub004/internal/grading"
	"github.com/EberSantana/flowedu-sub004/internal/history"
	"github.com/EberSantana/flowedu-sub004/internal/llm"
	"github.com/EberSantana/flowedu-sub004/internal/metrics"
	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
	"github.com/EberSantana/flowedu-sub004/internal/store"
	"github.com/EberSantana/flowedu-sub004/internal/submission"
	"github.com/EberSantana/flowedu-sub004/internal/triage"
	"github.com/EberSantana/flowedu-sub004/internal/wallet"
)

// services is the wired object graph behind every command.
type services struct {
	store     *store.Store
	metrics   *metrics.Metrics
	catalogue *exercise.Catalogue
	wallet    *wallet.Service
	scheduler *spacedrep.Scheduler
	triage    *triage.Manager
	history   *history.Log

	// Set only when opened with a judge.
	grader      *grading.Grader
	submissions *submission.Service

	closers []func() error
}

// openServices opens the store and builds the services. withJudge also
// connects the configured judge provider.
func openServices(ctx context.Context, withJudge bool) (*services, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("store opened", zap.String("path", dbPath))

	s := &services{
		store:     st,
		metrics:   metrics.New(),
		catalogue: exercise.NewCatalogue(st.Exercises()),
		closers:   []func() error{st.Close},
	}

	var remote wallet.Awarder
	if cfg.Wallet.RemoteURL != "" {
		h := wallet.NewHTTPAwarder(cfg.Wallet)
		s.closers = append(s.closers, h.Close)
		remote = h
	}
	s.wallet = wallet.NewService(st.Awards(), remote, cfg.Wallet, logger.Named("wallet"))

	params := cfg.SchedulerParams()
	s.scheduler = spacedrep.NewScheduler(st.Queue(), st.History(), params, s.metrics, logger.Named("scheduler"))
	s.triage = triage.NewManager(st.Answers(), s.wallet, s.scheduler, s.metrics, logger.Named("triage"))
	s.history = history.NewLog(st.History(), params.Location)

	if withJudge {
		llmCfg, err := judgeConfig()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("judge provider not configured: %w", err)
		}
		provider, err := llm.NewProvider(ctx, llmCfg, st.JudgeCalls(), logger.Named("llm"))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create judge provider: %w", err)
		}
		s.grader = grading.NewGrader(provider, cfg.Grading, logger.Named("grading"), s.metrics)
		s.submissions = submission.NewService(st.Answers(), s.catalogue, s.grader, s.scheduler, s.wallet, logger.Named("submission"))
	}
	return s, nil
}

func (s *services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// judgeConfig returns the configured judge settings. When the configured
// provider has no key, a vendor key in the environment (ANTHROPIC_API_KEY and
// friends) selects the provider instead, keeping retry and pacing settings.
func judgeConfig() (llm.Config, error) {
	err := cfg.LLM.Validate()
	if err == nil {
		return cfg.LLM, nil
	}
	found, ok := llm.DiscoverConfig()
	if !ok {
		return llm.Config{}, err
	}
	found.Retry = cfg.LLM.Retry
	found.RateLimit = cfg.LLM.RateLimit
	found.Timeout = cfg.LLM.Timeout
	logger.Info("judge provider taken from environment", zap.String("provider", found.Provider))
	return found, nil
}
