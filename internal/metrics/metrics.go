// Package metrics exposes Prometheus collectors for the portfolio API.
//
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	rateLimited        *prometheus.CounterVec
	chatTurns          *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	notes              *prometheus.CounterVec
	sideTasks          *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_rate_limited_total",
			Help: "Requests rejected by a rate limit policy",
		}, []string{"policy"}),
		chatTurns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_chat_turns_total",
			Help: "Chat turns by mode and outcome",
		}, []string{"mode", "outcome"}),
		completionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_completion_duration_seconds",
			Help:    "Duration of completion calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider", "mode"}),
		notes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_notes_total",
			Help: "Note submissions by status",
		}, []string{"status"}),
		sideTasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_side_tasks_total",
			Help: "Best-effort side task runs by task and status",
		}, []string{"task", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware records request counts and durations labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RateLimited counts a rejection by policy.
func (m *Metrics) RateLimited(policy string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(policy).Inc()
}

// ChatTurn counts a finished chat turn.
func (m *Metrics) ChatTurn(mode, outcome string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(mode, outcome).Inc()
}

// ObserveCompletion records how long a completion call took.
func (m *Metrics) ObserveCompletion(provider, mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.completionDuration.WithLabelValues(provider, mode).Observe(d.Seconds())
}

// Note counts a note submission outcome.
func (m *Metrics) Note(status string) {
	if m == nil {
		return
	}
	m.notes.WithLabelValues(status).Inc()
}

// SideTask counts a side task run.
func (m *Metrics) SideTask(task string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sideTasks.WithLabelValues(task, status).Inc()
}
