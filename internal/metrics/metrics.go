// Package metrics exposes Prometheus instruments for grading, scheduling and
// the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Judgment outcomes.
const (
	OutcomeJudged    = "judged"
	OutcomeEmpty     = "empty"
	OutcomeObjective = "objective"
	OutcomeDegraded  = "degraded"
)

// Metrics holds all collectors on a dedicated registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	judgments       *prometheus.CounterVec
	confidence      prometheus.Histogram
	judgeLatency    prometheus.Histogram
	reviews         *prometheus.CounterVec
	finalized       prometheus.Counter
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		judgments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowedu_judgments_total",
				Help: "Answer judgments by outcome",
			},
			[]string{"outcome"},
		),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowedu_judgment_confidence",
			Help:    "Confidence reported for judged answers",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		judgeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowedu_judge_latency_seconds",
			Help:    "Wall time of a judgment including retries",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		reviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowedu_reviews_recorded_total",
				Help: "Recorded spaced-repetition reviews by self rating",
			},
			[]string{"rating"},
		),
		finalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowedu_reviews_finalized_total",
			Help: "Answers finalized by a teacher",
		}),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
	}

	m.registry.MustRegister(
		m.judgments, m.confidence, m.judgeLatency, m.reviews, m.finalized,
		m.requestCounter, m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveJudgment records one grading outcome. confidence is ignored for
// outcomes that did not come from the judge.
func (m *Metrics) ObserveJudgment(outcome string, confidence int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.judgments.WithLabelValues(outcome).Inc()
	if outcome == OutcomeJudged {
		m.confidence.Observe(float64(confidence))
	}
	if outcome == OutcomeJudged || outcome == OutcomeDegraded {
		m.judgeLatency.Observe(elapsed.Seconds())
	}
}

// ReviewRecorded counts one spaced-repetition review.
func (m *Metrics) ReviewRecorded(rating string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(rating).Inc()
}

// AnswerFinalized counts one teacher finalization.
func (m *Metrics) AnswerFinalized() {
	if m == nil {
		return
	}
	m.finalized.Inc()
}

// Middleware records request counts and latencies per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, endpoint).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	var h http.Handler
	if m == nil {
		h = promhttp.Handler()
	} else {
		h = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
