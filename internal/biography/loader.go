// Package biography loads the biography document the chat relay answers from.
//
// The document is read from the first readable candidate path and held in a
// single cached slot until its TTL elapses or a watcher invalidates it. When
// no candidate can be read, a fixed fallback sentence is cached in its place,
// so Context never returns an empty string.
package biography

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultFallback is served when no candidate path is readable.
const DefaultFallback = "Anmol Baruwal is a software developer with expertise in full-stack development and modern web technologies."

// DefaultTTL is how long a loaded document is served before re-reading.
const DefaultTTL = 5 * time.Minute

// DefaultPaths returns the candidate locations relative to the working directory.
func DefaultPaths() []string {
	return []string{
		filepath.Join("public", "context.md"),
		filepath.Join("..", "public", "context.md"),
		"context.md",
	}
}

// Loader caches the biography document.
type Loader struct {
	paths    []string
	ttl      time.Duration
	fallback string
	now      func() time.Time
	readFile func(string) ([]byte, error)
	logger   *slog.Logger

	mu       sync.Mutex
	content  string
	source   string
	loadedAt time.Time
	valid    bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithPaths sets the candidate paths, tried in order.
func WithPaths(paths ...string) Option {
	return func(l *Loader) {
		if len(paths) > 0 {
			l.paths = paths
		}
	}
}

// WithTTL sets the cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(l *Loader) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithFallback sets the fallback text.
func WithFallback(text string) Option {
	return func(l *Loader) {
		if strings.TrimSpace(text) != "" {
			l.fallback = text
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithReadFile overrides os.ReadFile.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(l *Loader) { l.readFile = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a Loader with defaults overridden by opts.
func New(opts ...Option) *Loader {
	l := &Loader{
		paths:    DefaultPaths(),
		ttl:      DefaultTTL,
		fallback: DefaultFallback,
		now:      time.Now,
		readFile: os.ReadFile,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Paths returns the candidate paths.
func (l *Loader) Paths() []string {
	return append([]string(nil), l.paths...)
}

// Context returns the cached document, reloading it when stale.
func (l *Loader) Context() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.valid && now.Sub(l.loadedAt) < l.ttl {
		return l.content
	}

	for _, p := range l.paths {
		data, err := l.readFile(p)
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if l.source != p || !l.valid {
			l.logger.Info("biography: loaded", slog.String("path", p), slog.Int("bytes", len(data)))
		}
		l.store(string(data), p, now)
		return l.content
	}

	l.logger.Error("biography: no readable candidate, using fallback",
		slog.String("paths", strings.Join(l.paths, ",")))
	l.store(l.fallback, "", now)
	return l.content
}

// Source reports which path the cached content came from. Empty means the
// fallback is cached or nothing has been loaded yet.
func (l *Loader) Source() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

// Invalidate drops the cached slot so the next Context call re-reads.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.valid = false
	l.mu.Unlock()
}

func (l *Loader) store(content, source string, at time.Time) {
	l.content = content
	l.source = source
	l.loadedAt = at
	l.valid = true
}
