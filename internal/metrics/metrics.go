// Package metrics exposes Prometheus collectors for HTTP traffic and the attempt lifecycle.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so tests can build isolated instances.
type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	AttemptsStarted   prometheus.Counter
	SectionsSubmitted *prometheus.CounterVec
	AttemptsCompleted prometheus.Counter
	GuardViolations   *prometheus.CounterVec
	AutosavedAnswers  prometheus.Counter
	WorkerBatches     *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		AttemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tryout_attempts_started_total",
			Help: "Attempts created",
		}),
		SectionsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tryout_sections_submitted_total",
				Help: "Sections submitted, by trigger (manual or expiry)",
			},
			[]string{"trigger"},
		),
		AttemptsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tryout_attempts_completed_total",
			Help: "Attempts whose final section was submitted",
		}),
		GuardViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tryout_guard_violations_total",
				Help: "Rejected attempt transitions, by error code",
			},
			[]string{"code"},
		),
		AutosavedAnswers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tryout_autosaved_answers_total",
			Help: "Answers buffered through autosave",
		}),
		WorkerBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tryout_worker_batches_total",
				Help: "Batches flushed by background workers",
			},
			[]string{"worker", "result"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter,
		m.RequestDuration,
		m.AttemptsStarted,
		m.SectionsSubmitted,
		m.AttemptsCompleted,
		m.GuardViolations,
		m.AutosavedAnswers,
		m.WorkerBatches,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
