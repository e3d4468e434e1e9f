// Package sse implements Server-Sent Events framing for the chat token stream,
// a consumer-side decoder, and a fan-out broker for admin notifications.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrClosed is returned by Send after the stream was closed.
var ErrClosed = errors.New("sse: stream closed")

// ErrUnsupported is returned when the ResponseWriter cannot flush.
var ErrUnsupported = errors.New("sse: streaming unsupported")

// Writer frames JSON payloads as `data: <json>\n\n` events on one response.
// It is safe for concurrent use; once closed every Send fails with ErrClosed.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu        sync.Mutex
	committed bool
	closed    bool
}

// NewWriter wraps w. It fails when w does not support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrUnsupported
	}
	return &Writer{w: w, flusher: f}, nil
}

// Open writes the event-stream headers and flushes them. Calling Open more
// than once is a no-op.
func (s *Writer) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openLocked()
}

func (s *Writer) openLocked() {
	if s.committed {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
	s.committed = true
}

// Committed reports whether headers have been sent. After that point errors
// must be delivered as events, never as a status code.
func (s *Writer) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Send writes one event and flushes it.
func (s *Writer) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.openLocked()
	if _, err := s.w.Write(Frame("", payload)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteFrame writes an already framed event, such as a broker notice or a
// comment ping, and flushes it.
func (s *Writer) WriteFrame(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.openLocked()
	if _, err := s.w.Write(raw); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close marks the stream finished. It reports true only for the call that
// actually closed it.
func (s *Writer) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// Closed reports whether Close was called.
func (s *Writer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Frame encodes one event. An empty event type produces a bare data event.
func Frame(event string, data []byte) []byte {
	if event == "" {
		return []byte(fmt.Sprintf("data: %s\n\n", data))
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
}
