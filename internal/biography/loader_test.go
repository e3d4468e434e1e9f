package biography

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// countingReader serves files from a map and counts reads.
type countingReader struct {
	mu    sync.Mutex
	files map[string]string
	reads int
}

func (r *countingReader) read(p string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if s, ok := r.files[p]; ok {
		return []byte(s), nil
	}
	return nil, os.ErrNotExist
}

func (r *countingReader) set(p, s string) {
	r.mu.Lock()
	r.files[p] = s
	r.mu.Unlock()
}

func TestContext_FirstCandidateWins(t *testing.T) {
	fr := &countingReader{files: map[string]string{"b": "from b", "c": "from c"}}
	l := New(WithPaths("a", "b", "c"), WithReadFile(fr.read), WithLogger(quietLogger()))

	if got := l.Context(); got != "from b" {
		t.Errorf("Context() = %q, want %q", got, "from b")
	}
	if l.Source() != "b" {
		t.Errorf("Source() = %q, want b", l.Source())
	}
}

func TestContext_CachedWithinTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fr := &countingReader{files: map[string]string{"bio.md": "v1"}}
	l := New(WithPaths("bio.md"), WithReadFile(fr.read), WithTTL(5*time.Minute),
		WithClock(func() time.Time { return now }), WithLogger(quietLogger()))

	l.Context()
	fr.set("bio.md", "v2")
	for i := 0; i < 10; i++ {
		if got := l.Context(); got != "v1" {
			t.Fatalf("Context() = %q inside TTL, want v1", got)
		}
	}
	if fr.reads != 1 {
		t.Errorf("reads = %d, want 1", fr.reads)
	}

	now = now.Add(5 * time.Minute)
	if got := l.Context(); got != "v2" {
		t.Errorf("Context() after TTL = %q, want v2", got)
	}
}

func TestContext_FallbackIsCached(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fr := &countingReader{files: map[string]string{}}
	l := New(WithPaths("x", "y"), WithReadFile(fr.read),
		WithClock(func() time.Time { return now }), WithLogger(quietLogger()))

	first := l.Context()
	if first != DefaultFallback {
		t.Fatalf("Context() = %q, want fallback", first)
	}
	readsAfterFirst := fr.reads
	if got := l.Context(); got != DefaultFallback {
		t.Errorf("second Context() = %q", got)
	}
	if fr.reads != readsAfterFirst {
		t.Errorf("fallback not cached: reads went %d -> %d", readsAfterFirst, fr.reads)
	}
}

func TestContext_NeverEmpty(t *testing.T) {
	l := New(
		WithPaths("empty.md"),
		WithReadFile(func(string) ([]byte, error) { return []byte("   \n"), nil }),
		WithFallback(""),
		WithLogger(quietLogger()),
	)
	if got := l.Context(); got == "" {
		t.Fatal("Context() returned empty string")
	}

	l = New(WithReadFile(func(string) ([]byte, error) { return nil, errors.New("permission denied") }),
		WithLogger(quietLogger()))
	if got := l.Context(); got != DefaultFallback {
		t.Errorf("Context() = %q, want fallback", got)
	}
}

func TestInvalidate_ForcesReload(t *testing.T) {
	fr := &countingReader{files: map[string]string{"bio.md": "v1"}}
	l := New(WithPaths("bio.md"), WithReadFile(fr.read), WithLogger(quietLogger()))
	l.Context()
	fr.set("bio.md", "v2")
	l.Invalidate()
	if got := l.Context(); got != "v2" {
		t.Errorf("Context() after Invalidate = %q, want v2", got)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_InvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "context.md")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(WithPaths(path), WithTTL(time.Hour), WithLogger(quietLogger()))
	if got := l.Context(); got != "first" {
		t.Fatalf("Context() = %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Watch(ctx)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		return l.Context() == "second"
	}, "context was not reloaded after file write")

	cancel()
	<-done
}
