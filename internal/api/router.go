package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/chat"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/metrics"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/noteservice"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/ratelimit"
)

// Deps collects everything the API routes need.
type Deps struct {
	Relay       *chat.Relay
	Notes       *noteservice.Service
	ChatLimiter *ratelimit.Limiter
	NoteLimiter *ratelimit.Limiter
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	// Events, if non-nil, is mounted at GET /admin/events.
	Events http.Handler

	// AuthEnabled mounts the /admin group behind AuthToken. Without it the
	// group is not served at all.
	AuthEnabled bool
	AuthToken   string

	// IgnoreProxyHeaders keys callers by the connection address only, for
	// deployments not behind a proxy that sets X-Forwarded-For.
	IgnoreProxyHeaders bool

	StreamByDefault bool
	// ExposeDetails adds error details to 5xx JSON bodies.
	ExposeDetails bool
	ServiceName   string
	ResumeURL     string
	Now           func() time.Time
}

// NewRouter creates a chi router with all API routes. It is meant to be
// mounted under /api.
func NewRouter(d Deps) chi.Router {
	h := newHandler(d)

	r := chi.NewRouter()
	r.MethodNotAllowed(methodNotAllowed)
	r.NotFound(notFound)

	r.Post("/chat", h.Chat)
	r.Post("/leave-note", h.LeaveNote)
	r.HandleFunc("/health", h.Health)
	r.HandleFunc("/resume", h.Resume)

	// Admin routes expose submitter details, so they exist only behind a
	// bearer token.
	if d.AuthEnabled {
		r.Route("/admin", func(r chi.Router) {
			r.Use(AuthMiddleware(d.AuthEnabled, d.AuthToken))
			r.Get("/notes", h.ListNotes)
			if d.Events != nil {
				r.Get("/events", d.Events.ServeHTTP)
			}
		})
	}

	return r
}
