package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"
)

// UpstreamKind subclassifies a failure of an external collaborator.
type UpstreamKind int

const (
	KindUnknown UpstreamKind = iota
	KindRateLimit
	KindTimeout
	KindAuth
	KindUnreachable
)

func (k UpstreamKind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// StatusCoder is implemented by upstream errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

var unreachablePattern = regexp.MustCompile(`(?i)ENOTFOUND|fetch failed|ECONNREFUSED|ETIMEDOUT|connection refused|no such host|i/o timeout`)

// Classify inspects structured error information first and falls back to
// message substrings only when nothing structured is available.
func Classify(err error) UpstreamKind {
	if err == nil {
		return KindUnknown
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == http.StatusTooManyRequests:
			return KindRateLimit
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return KindAuth
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return KindTimeout
		}
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrUnreachable), errors.Is(err, syscall.ECONNREFUSED):
		return KindUnreachable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return KindTimeout
		}
		return KindUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return KindRateLimit
	case strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "API key"):
		return KindAuth
	case unreachablePattern.MatchString(msg):
		return KindUnreachable
	}
	return KindUnknown
}

// IsUnreachable reports whether err means the backing service could not be
// reached at all, as opposed to rejecting the request.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnreachable) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return unreachablePattern.MatchString(err.Error())
}
