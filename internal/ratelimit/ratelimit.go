// Package ratelimit implements a fixed-window request counter keyed by
// (policy, client). Each policy owns its own key space, so the chat and note
// limits never interfere even when they share a store.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
)

// Policy is a named (max requests, window) pair.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
	// RetryAfter is the hint returned to rejected callers. Zero means Window.
	RetryAfter time.Duration
}

// Hint returns the retry hint advertised to rejected callers.
func (p Policy) Hint() time.Duration {
	if p.RetryAfter > 0 {
		return p.RetryAfter
	}
	return p.Window
}

// Default policies.
var (
	ChatPolicy = Policy{Name: "chat", Max: 5, Window: 5 * time.Minute}
	NotePolicy = Policy{Name: "note", Max: 1, Window: 10 * time.Minute}
)

// Decision is the outcome of a single Hit.
type Decision struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// Store performs the atomic check-and-increment for one key.
//
// If no live entry exists for key (absent or now > resetAt) the entry is
// replaced with count=1 and resetAt=now+window and the hit is admitted.
// Otherwise the hit is admitted and counted only while count < max; a
// rejected hit leaves the count unchanged.
type Store interface {
	Hit(ctx context.Context, key string, max int, window time.Duration) (Decision, error)
}

// Limiter applies a Policy against a Store.
type Limiter struct {
	store  Store
	policy Policy
	logger *slog.Logger
}

// New creates a Limiter. A nil logger falls back to slog.Default().
func New(store Store, policy Policy, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, policy: policy, logger: logger}
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Admit records a request from clientID. It returns nil when the request is
// admitted and *apperr.RateLimitedError when the window is exhausted.
// Store failures are logged and admitted.
func (l *Limiter) Admit(ctx context.Context, clientID string) error {
	d, err := l.store.Hit(ctx, Key(l.policy.Name, clientID), l.policy.Max, l.policy.Window)
	if err != nil {
		l.logger.Warn("ratelimit: store failed, admitting",
			slog.String("policy", l.policy.Name),
			slog.String("error", err.Error()))
		return nil
	}
	if d.Allowed {
		return nil
	}
	l.logger.Warn("ratelimit: rejected",
		slog.String("policy", l.policy.Name),
		slog.String("client", clientID),
		slog.Int("count", d.Count))
	return &apperr.RateLimitedError{Policy: l.policy.Name, RetryAfter: l.policy.Hint()}
}

// Key builds the store key for a policy and client.
func Key(policy, clientID string) string {
	return policy + ":" + clientID
}
