// Package testutil provides shared fakes for package tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/completion"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/storage"
)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestSQLite opens a temporary SQLite note store closed on cleanup.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.OpenSQLite(t.TempDir() + "/notes.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// MemStore is an in-memory storage.NoteStore whose Insert can be made to fail.
type MemStore struct {
	mu    sync.Mutex
	notes []models.Note
	err   error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Fail makes every subsequent Insert return err.
func (m *MemStore) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Insert implements storage.NoteStore.
func (m *MemStore) Insert(_ context.Context, n models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.notes = append(m.notes, n)
	return nil
}

// List implements storage.NoteStore.
func (m *MemStore) List(_ context.Context, limit, offset int) ([]models.Note, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append([]models.Note(nil), m.notes...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], len(all), nil
}

// Close implements storage.NoteStore.
func (m *MemStore) Close() error { return nil }

// Notes returns a copy of the stored notes.
func (m *MemStore) Notes() []models.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Note(nil), m.notes...)
}

// Scripted is a completion.Provider that replays fixed chunks.
type Scripted struct {
	Chunks []string
	// Delay is slept before each chunk.
	Delay time.Duration
	// Err is returned after all chunks were emitted.
	Err error
	// IgnoreCancel keeps emitting after ctx is done.
	IgnoreCancel bool

	mu    sync.Mutex
	calls int
	last  completion.Request
	// Emitted counts tokens passed to emit, including ones emitted after the
	// caller stopped listening.
	emitted int
}

// Name implements completion.Provider.
func (s *Scripted) Name() string { return "scripted" }

// Complete implements completion.Provider.
func (s *Scripted) Complete(ctx context.Context, req completion.Request) (string, error) {
	s.record(req)
	var out string
	for _, c := range s.Chunks {
		if err := s.sleep(ctx); err != nil {
			return "", err
		}
		out += c
	}
	if s.Err != nil {
		return "", s.Err
	}
	return out, nil
}

// Stream implements completion.Provider. It ignores emit errors and keeps
// going, like an upstream that does not notice the client left.
func (s *Scripted) Stream(ctx context.Context, req completion.Request, emit func(string) error) error {
	s.record(req)
	for _, c := range s.Chunks {
		if err := s.sleep(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		s.emitted++
		s.mu.Unlock()
		_ = emit(c)
	}
	return s.Err
}

// Calls returns how many times the provider was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastRequest returns the most recent request.
func (s *Scripted) LastRequest() completion.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Emitted returns how many tokens were handed to emit.
func (s *Scripted) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

func (s *Scripted) record(req completion.Request) {
	s.mu.Lock()
	s.calls++
	s.last = req
	s.mu.Unlock()
}

func (s *Scripted) sleep(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}
	if s.IgnoreCancel {
		time.Sleep(s.Delay)
		return nil
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
