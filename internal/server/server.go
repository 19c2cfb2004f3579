// Package server exposes grading, triage and review scheduling over a JSON
// HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/config"
	"github.com/EberSantana/flowedu-sub004/internal/grading"
	"github.com/EberSantana/flowedu-sub004/internal/history"
	"github.com/EberSantana/flowedu-sub004/internal/metrics"
	"github.com/EberSantana/flowedu-sub004/internal/session"
	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
	"github.com/EberSantana/flowedu-sub004/internal/store"
	"github.com/EberSantana/flowedu-sub004/internal/submission"
	"github.com/EberSantana/flowedu-sub004/internal/triage"
)

type Submitter interface {
	Submit(ctx context.Context, in submission.Input) (*submission.Result, error)
	SubmitBatch(ctx context.Context, inputs []submission.Input) []submission.BatchResult
}

type Analyzer interface {
	AnalyzeAnswer(ctx context.Context, in grading.Input) grading.Judgment
}

type Triage interface {
	ListPending(ctx context.Context, scope triage.Scope) ([]store.Answer, error)
	Finalize(ctx context.Context, answerID int64, finalScore int, teacherFeedback *string) (*store.Answer, error)
	Stats(ctx context.Context, scope triage.Scope) (triage.Stats, error)
}

type Scheduler interface {
	Params() spacedrep.Params
	Queue(ctx context.Context, studentID string, f spacedrep.Filters, limit int) ([]spacedrep.QueueEntry, error)
	Open(ctx context.Context, queueItemID int64, studentID string) (*session.Review, error)
	RecordReview(ctx context.Context, in spacedrep.RecordInput) (*spacedrep.UpdateResult, error)
	Forecast(ctx context.Context, studentID string, days int) ([]spacedrep.DayForecast, error)
}

type History interface {
	List(ctx context.Context, studentID string, limit int) ([]store.HistoryEntry, error)
	Analytics(ctx context.Context, studentID string) (*history.Stats, error)
}

type Wallet interface {
	Balance(ctx context.Context, studentID string) (int, error)
	Ledger(ctx context.Context, studentID string) ([]store.PointAward, error)
}

type Exercises interface {
	List(ctx context.Context, teacherID string) ([]store.Exercise, error)
}

// Deps are the services behind the API. Wallet and Exercises may be nil,
// which disables their routes.
type Deps struct {
	Submissions Submitter
	Grader      Analyzer
	Triage      Triage
	Scheduler   Scheduler
	History     History
	Wallet      Wallet
	Exercises   Exercises

	// Ping reports store health for /healthz.
	Ping func(ctx context.Context) error
}

// Server is the HTTP front end.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	engine   *gin.Engine
	sessions *session.Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
	trans    ut.Translator
	now      func() time.Time
}

// New builds the router. m and log may be nil.
func New(cfg config.ServerConfig, deps Deps, m *metrics.Metrics, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	trans, err := bindingTranslator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		engine:   gin.New(),
		sessions: session.NewRegistry(cfg.SessionTTL),
		metrics:  m,
		log:      log,
		trans:    trans,
		now:      time.Now,
	}
	s.engine.Use(gin.Recovery(), s.accessLog(), m.Middleware())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", s.healthz)
	r.GET("/metrics", s.metrics.Handler())

	api := r.Group("/api/v1")

	api.POST("/answers", s.submitAnswer)
	api.POST("/answers/batch", s.submitBatch)
	api.POST("/answers/:id/finalize", s.finalizeReview)
	api.POST("/analyze", s.analyzeAnswer)

	teachers := api.Group("/teachers/:teacherId")
	teachers.GET("/pending", s.listPending)
	teachers.GET("/pending/stats", s.pendingStats)
	if s.deps.Exercises != nil {
		teachers.GET("/exercises", s.listExercises)
	}

	api.POST("/queue/:id/open", s.openReview)
	api.POST("/queue/:id/review", s.recordReview)

	sessions := api.Group("/sessions/:sessionId")
	sessions.GET("", s.getSession)
	sessions.PUT("/draft", s.saveDraft)
	sessions.POST("/pause", s.pauseSession)
	sessions.POST("/resume", s.resumeSession)

	students := api.Group("/students/:studentId")
	students.GET("/queue", s.reviewQueue)
	students.GET("/forecast", s.forecast)
	students.GET("/history", s.reviewHistory)
	students.GET("/stats", s.historyStats)
	if s.deps.Wallet != nil {
		students.GET("/wallet", s.wallet)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) healthz(c *gin.Context) {
	if s.deps.Ping != nil {
		if err := s.deps.Ping(c.Request.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			fail(c, http.StatusServiceUnavailable, "database unavailable", nil)
			return
		}
	}
	success(c, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
		},
	})
}

var (
	transOnce sync.Once
	transVal  ut.Translator
	transErr  error
)

// bindingTranslator registers English messages and JSON field names on
// gin's shared validator.
func bindingTranslator() (ut.Translator, error) {
	transOnce.Do(func() {
		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		transVal, _ = uni.GetTranslator("en")

		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return ""
		})
		if err := enTranslations.RegisterDefaultTranslations(v, transVal); err != nil {
			transErr = fmt.Errorf("failed to register default translations: %w", err)
		}
	})
	return transVal, transErr
}
