package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/chat"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/metrics"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/noteservice"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/ratelimit"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/sse"
)

// Response texts.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgNotFound         = "Not found"
	msgChatLimited      = "Too many chat requests, please try again later."
	msgNoteLimited      = "Too many note submissions, please try again later."
	msgNoteRequired     = "Name, email, and message are required"
	msgNoteNoStore      = "Database configuration missing"
	msgNoteSaveFailed   = "Failed to save note"
	msgNoteUnreachable  = "Database is temporarily unreachable. If you use Supabase free tier, check the dashboard — the project may be paused and need restoring."
	msgNoteOK           = "Note submitted successfully"
	msgReadNotesFailed  = "Failed to read notes"

	// DefaultServiceName is reported by the health endpoint.
	DefaultServiceName = "Anmol Portfolio API"
	// DefaultResumePath is where GET /api/resume redirects.
	DefaultResumePath = "/AnmolBaruwal__Resume.pdf"
)

// Handler holds API route handlers.
type Handler struct {
	relay       *chat.Relay
	notes       *noteservice.Service
	chatLimiter *ratelimit.Limiter
	noteLimiter *ratelimit.Limiter
	metrics     *metrics.Metrics
	logger      *slog.Logger

	streamDefault bool
	exposeDetails bool
	ignoreProxy   bool
	serviceName   string
	resumeURL     string
	now           func() time.Time
}

func newHandler(d Deps) *Handler {
	h := &Handler{
		relay:         d.Relay,
		notes:         d.Notes,
		chatLimiter:   d.ChatLimiter,
		noteLimiter:   d.NoteLimiter,
		metrics:       d.Metrics,
		logger:        d.Logger,
		streamDefault: d.StreamByDefault,
		exposeDetails: d.ExposeDetails,
		ignoreProxy:   d.IgnoreProxyHeaders,
		serviceName:   d.ServiceName,
		resumeURL:     d.ResumeURL,
		now:           d.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.serviceName == "" {
		h.serviceName = DefaultServiceName
	}
	if h.resumeURL == "" {
		h.resumeURL = DefaultResumePath
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// clientIP identifies the caller for rate limiting and note records.
func (h *Handler) clientIP(r *http.Request) string {
	if h.ignoreProxy {
		return RemoteIP(r)
	}
	return ClientIP(r)
}

// admit applies limiter to the caller and writes the 429 reply when the
// window is exhausted. It reports whether the request may proceed.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, limiter *ratelimit.Limiter, msg string) bool {
	if limiter == nil {
		return true
	}
	err := limiter.Admit(r.Context(), h.clientIP(r))
	if err == nil {
		return true
	}
	rl, ok := apperr.IsRateLimited(err)
	if !ok {
		return true
	}
	h.metrics.RateLimited(rl.Policy)
	secs := rl.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, RateLimitResponse{Error: msg, RetryAfter: secs})
	return false
}

// wantsStream picks the reply mode: the request body wins, then the
// `stream` query parameter, then the configured default.
func (h *Handler) wantsStream(r *http.Request, req ChatRequest) bool {
	if req.Stream != nil {
		return *req.Stream
	}
	if v := r.URL.Query().Get("stream"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return h.streamDefault
}

// Chat handles POST /api/chat.
//
//	@Summary		Ask the portfolio assistant a question
//	@Description	Streams Server-Sent Events ({content}, {done:true} or {error}) unless stream=false.
//	@Tags			chat
//	@Accept			json
//	@Produce		json,text/event-stream
//	@Param			body	body		ChatRequest	true	"Question"
//	@Success		200		{object}	ChatResponse
//	@Failure		400		{object}	errResponse
//	@Failure		405		{object}	errResponse
//	@Failure		429		{object}	RateLimitResponse
//	@Failure		500		{object}	errResponse
//	@Router			/chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.admit(w, r, h.chatLimiter, msgChatLimited) {
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(chat.MsgBadMessage))
		return
	}
	message, ok := req.message()
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody(chat.MsgBadMessage))
		return
	}
	if err := h.relay.Check(message); err != nil {
		h.writeChatError(w, err)
		return
	}

	if h.wantsStream(r, req) {
		sw, err := sse.NewWriter(w)
		if err == nil {
			state, err := h.relay.Stream(r.Context(), message, sw)
			if err != nil {
				h.writeChatError(w, err)
				return
			}
			h.logger.Debug("chat turn finished", slog.String("state", state.String()))
			return
		}
		h.logger.Warn("streaming unsupported, answering as JSON")
	}

	answer, err := h.relay.Answer(r.Context(), message)
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: answer})
}

func (h *Handler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody(chat.MsgBadMessage))
	case errors.Is(err, apperr.ErrConfiguration):
		writeJSON(w, http.StatusInternalServerError, errorBody(chat.MsgNoCredential))
	default:
		h.logger.Error("chat request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, detailedError(chat.MsgGeneric, err, h.exposeDetails))
	}
}

// LeaveNote handles POST /api/leave-note.
//
//	@Summary		Leave a note for the site owner
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note"
//	@Success		200		{object}	NoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		405		{object}	errResponse
//	@Failure		429		{object}	RateLimitResponse
//	@Failure		500		{object}	errResponse
//	@Router			/leave-note [post]
func (h *Handler) LeaveNote(w http.ResponseWriter, r *http.Request) {
	if !h.admit(w, r, h.noteLimiter, msgNoteLimited) {
		return
	}

	var req NoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(msgNoteRequired))
		return
	}

	note, err := h.notes.Submit(r.Context(), req, h.clientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, NoteResponse{Success: true, Message: msgNoteOK, NoteID: note.ID})
	case errors.Is(err, apperr.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody(msgNoteRequired))
	case errors.Is(err, apperr.ErrConfiguration):
		writeJSON(w, http.StatusInternalServerError, errorBody(msgNoteNoStore))
	case errors.Is(err, apperr.ErrUnreachable):
		writeJSON(w, http.StatusInternalServerError, detailedError(msgNoteUnreachable, err, h.exposeDetails))
	case errors.Is(err, noteservice.ErrSaveFailed):
		writeJSON(w, http.StatusInternalServerError, detailedError(msgNoteSaveFailed, err, h.exposeDetails))
	default:
		h.logger.Error("leave note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, detailedError(chat.MsgGeneric, err, h.exposeDetails))
	}
}

// Health handles /api/health.
//
//	@Summary	Liveness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		Service:   h.serviceName,
	})
}

// Resume handles /api/resume.
//
//	@Summary	Redirect to the résumé PDF
//	@Tags		system
//	@Success	307
//	@Router		/resume [get]
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.resumeURL, http.StatusTemporaryRedirect)
}

// ListNotes handles GET /api/admin/notes.
//
//	@Summary		List received notes, newest first
//	@Tags			admin
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/admin/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.notes.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list notes failed", slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrConfiguration) {
			writeJSON(w, http.StatusInternalServerError, errorBody(msgNoteNoStore))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody(msgReadNotesFailed))
		return
	}
	if items == nil {
		items = []models.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody(msgMethodNotAllowed))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody(msgNotFound))
}
