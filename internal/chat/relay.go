// Package chat answers visitor questions about the portfolio owner by relaying
// them, together with the biography, to a completion provider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/completion"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/metrics"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/sse"
)

// Messages delivered to the visitor.
const (
	MsgGeneric       = "An error occurred while processing your request."
	MsgRateLimit     = "OpenAI API rate limit exceeded. Please try again in a moment."
	MsgTimeout       = "Request timeout. Please try again with a shorter question."
	MsgAuth          = "API configuration error. Please contact support."
	MsgStreamTimeout = "Request timeout. The response took too long. Please try again with a shorter question."
	MsgNoResponse    = "Sorry, I could not generate a response."
	MsgBadMessage    = "Message is required and must be a string"
	MsgNoCredential  = "OpenAI API key is not configured"
)

// ErrorMessage maps an upstream failure class to the visitor-facing text.
func ErrorMessage(kind apperr.UpstreamKind) string {
	switch kind {
	case apperr.KindRateLimit:
		return MsgRateLimit
	case apperr.KindTimeout:
		return MsgTimeout
	case apperr.KindAuth:
		return MsgAuth
	default:
		return MsgGeneric
	}
}

// ContextSource supplies the biography text.
type ContextSource interface {
	Context() string
}

// StaticContext is a ContextSource backed by a fixed string.
type StaticContext string

// Context implements ContextSource.
func (s StaticContext) Context() string { return string(s) }

// Config holds the completion parameters of a turn.
type Config struct {
	Persona   string
	ResumeURL string

	StreamMaxTokens   int
	StreamTemperature float64
	AnswerMaxTokens   int
	AnswerTemperature float64

	// Timeout bounds one whole turn.
	Timeout time.Duration

	// ExposeDetails adds the raw upstream error to streamed error events.
	ExposeDetails bool
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		Persona:           DefaultPersona,
		ResumeURL:         DefaultResumeURL,
		StreamMaxTokens:   800,
		StreamTemperature: 0.3,
		AnswerMaxTokens:   500,
		AnswerTemperature: 0.2,
		Timeout:           60 * time.Second,
	}
}

// Relay runs chat turns against a completion provider.
type Relay struct {
	provider completion.Provider
	source   ContextSource
	cfg      Config
	system   string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Relay.
type Option func(*Relay)

// WithConfig replaces the default parameters. Zero fields keep their default.
func WithConfig(cfg Config) Option {
	return func(r *Relay) {
		def := DefaultConfig()
		if cfg.Persona == "" {
			cfg.Persona = def.Persona
		}
		if cfg.ResumeURL == "" {
			cfg.ResumeURL = def.ResumeURL
		}
		if cfg.StreamMaxTokens <= 0 {
			cfg.StreamMaxTokens = def.StreamMaxTokens
		}
		if cfg.AnswerMaxTokens <= 0 {
			cfg.AnswerMaxTokens = def.AnswerMaxTokens
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = def.Timeout
		}
		r.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// NewRelay creates a Relay. A nil provider means no credential was configured
// and every turn fails with apperr.ErrConfiguration.
func NewRelay(provider completion.Provider, source ContextSource, opts ...Option) *Relay {
	r := &Relay{
		provider: provider,
		source:   source,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.system = SystemPrompt(r.cfg.Persona, r.cfg.ResumeURL)
	return r
}

// Configured reports whether a provider is available.
func (r *Relay) Configured() bool {
	return r.provider != nil
}

// Check runs the per-turn validation: the message must be non-empty and a
// provider must be configured, in that order.
func (r *Relay) Check(message string) error {
	if message == "" {
		return apperr.BadRequest(MsgBadMessage)
	}
	if r.provider == nil {
		return apperr.Configuration(MsgNoCredential)
	}
	return nil
}

func (r *Relay) request(message string, stream bool) completion.Request {
	var bio string
	if r.source != nil {
		bio = r.source.Context()
	}
	req := completion.Request{
		System:      r.system,
		User:        UserTurn(bio, message),
		MaxTokens:   r.cfg.AnswerMaxTokens,
		Temperature: r.cfg.AnswerTemperature,
	}
	if stream {
		req.MaxTokens = r.cfg.StreamMaxTokens
		req.Temperature = r.cfg.StreamTemperature
	}
	return req
}

// Answer runs a non-streaming turn and returns the full reply.
func (r *Relay) Answer(ctx context.Context, message string) (string, error) {
	if err := r.Check(message); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := r.provider.Complete(ctx, r.request(message, false))
	r.metrics.ObserveCompletion(r.provider.Name(), "json", time.Since(start))
	if err != nil {
		r.metrics.ChatTurn("json", StateErrored.String())
		r.logger.Error("chat completion failed",
			slog.String("provider", r.provider.Name()),
			slog.String("kind", apperr.Classify(err).String()),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
	}
	r.metrics.ChatTurn("json", StateCompleted.String())
	if strings.TrimSpace(out) == "" {
		return MsgNoResponse, nil
	}
	return out, nil
}

type contentEvent struct {
	Content string `json:"content"`
}

type doneEvent struct {
	Done bool `json:"done"`
}

type errorEvent struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// tokenBuffer bounds how far the provider may run ahead of the client.
const tokenBuffer = 32

// Stream runs a streaming turn over w. A non-nil error means validation failed
// before anything was written, so the caller may still answer with a status
// code. Once streaming starts every outcome is delivered as an event and w is
// closed exactly once.
func (r *Relay) Stream(ctx context.Context, message string, w *sse.Writer) (State, error) {
	t := &turn{state: StateInit}
	t.to(StateValidating)
	if err := r.Check(message); err != nil {
		return t.state, err
	}

	upstream, cancel := context.WithCancel(ctx)
	defer cancel()

	w.Open()
	t.to(StateStreaming)

	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()

	tokens := make(chan string, tokenBuffer)
	done := make(chan error, 1)
	req := r.request(message, true)
	start := time.Now()

	go func() {
		done <- r.provider.Stream(upstream, req, func(tok string) error {
			select {
			case tokens <- tok:
				return nil
			case <-upstream.Done():
				return upstream.Err()
			}
		})
	}()

	finish := func(state State, ev any) State {
		t.to(state)
		if ev != nil {
			if err := w.Send(ev); err != nil && !errors.Is(err, sse.ErrClosed) {
				r.logger.Debug("terminal event not delivered", slog.String("error", err.Error()))
			}
		}
		w.Close()
		cancel()
		r.metrics.ObserveCompletion(r.provider.Name(), "stream", time.Since(start))
		r.metrics.ChatTurn("stream", state.String())
		return state
	}

	forward := func(tok string) bool {
		if err := w.Send(contentEvent{Content: tok}); err != nil {
			r.logger.Info("chat client went away", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	for {
		select {
		case tok := <-tokens:
			if !forward(tok) {
				return finish(StateErrored, nil), nil
			}

		case err := <-done:
			// The producer pushed every token before returning.
			for drained := false; !drained; {
				select {
				case tok := <-tokens:
					if !forward(tok) {
						return finish(StateErrored, nil), nil
					}
				default:
					drained = true
				}
			}
			if err != nil {
				if ctx.Err() != nil {
					return finish(StateErrored, nil), nil
				}
				kind := apperr.Classify(err)
				r.logger.Error("chat stream failed",
					slog.String("provider", r.provider.Name()),
					slog.String("kind", kind.String()),
					slog.String("error", err.Error()))
				ev := errorEvent{Error: ErrorMessage(kind)}
				if r.cfg.ExposeDetails {
					ev.Details = err.Error()
				}
				return finish(StateErrored, ev), nil
			}
			return finish(StateCompleted, doneEvent{Done: true}), nil

		case <-timer.C:
			r.logger.Warn("chat stream timed out", slog.Duration("after", r.cfg.Timeout))
			return finish(StateTimedOut, errorEvent{Error: MsgStreamTimeout}), nil

		case <-ctx.Done():
			r.logger.Info("chat client disconnected")
			return finish(StateErrored, nil), nil
		}
	}
}

// System returns the instruction block sent with every turn.
func (r *Relay) System() string {
	return r.system
}

// Biography returns the current context text.
func (r *Relay) Biography() string {
	if r.source == nil {
		return ""
	}
	return r.source.Context()
}
