// Package apperr defines the error taxonomy shared by the HTTP handlers,
// the chat relay and the note service.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrBadRequest       = errors.New("bad request")
	ErrConfiguration    = errors.New("configuration missing")
	ErrUpstream         = errors.New("upstream failure")
	ErrUnreachable      = errors.New("upstream unreachable")
	ErrTimeout          = errors.New("timeout")
)

// RateLimitedError is returned when a caller exhausted its window.
type RateLimitedError struct {
	Policy     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by %s policy, retry after %s", e.Policy, e.RetryAfter)
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// BadRequest wraps msg so that errors.Is(err, ErrBadRequest) holds.
func BadRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, msg)
}

// Configuration reports that a required external credential is absent.
func Configuration(what string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, what)
}

// IsRateLimited extracts a *RateLimitedError from err.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
