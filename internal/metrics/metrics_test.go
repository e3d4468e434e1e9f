package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RateLimited("chat")
	m.ChatTurn("stream", "completed")
	m.ObserveCompletion("openai", "stream", time.Second)
	m.Note("ok")
	m.SideTask("email", nil)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.RateLimited("note")
	m.RateLimited("note")
	m.ChatTurn("stream", "timed_out")
	m.SideTask("email", errors.New("boom"))

	if got := testutil.ToFloat64(m.rateLimited.WithLabelValues("note")); got != 2 {
		t.Errorf("rate limited = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.chatTurns.WithLabelValues("stream", "timed_out")); got != 1 {
		t.Errorf("chat turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sideTasks.WithLabelValues("email", "error")); got != 1 {
		t.Errorf("side tasks = %v, want 1", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/health", "GET", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "portfolio_http_requests_total") {
		t.Error("exposition missing portfolio_http_requests_total")
	}
}
