// Package completion adapts chat-completion services behind a single Provider
// port used by the chat relay and the MCP server.
package completion

import (
	"context"
	"errors"
	"fmt"
)

// Request is one single-turn completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Provider is a chat-completion backend.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Complete returns the full completion text.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream calls emit for every non-empty token in arrival order. Returning
	// an error from emit stops the stream and Stream returns that error.
	Stream(ctx context.Context, req Request, emit func(token string) error) error
}

var (
	ErrNotConfigured = errors.New("completion: provider not configured")
	ErrRateLimited   = errors.New("completion: rate limit exceeded")
	ErrAuth          = errors.New("completion: invalid API key")
)

// APIError is a non-2xx reply from a completion service.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
}

// StatusCode implements apperr.StatusCoder.
func (e *APIError) StatusCode() int {
	return e.Status
}

// Unwrap maps well-known statuses to sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case 429:
		return ErrRateLimited
	case 401, 403:
		return ErrAuth
	}
	return nil
}
