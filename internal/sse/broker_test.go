package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Notice{Type: "note.created", Data: map[string]string{"id": "n1", "name": "Ada"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"name":"Ada"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestKeepAlivePing(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case msg := <-ch:
		if string(msg) != ": ping\n\n" {
			t.Errorf("got %q, want ping comment", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no keepalive received")
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := NewBroker(time.Minute)
	ch := b.Subscribe()
	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
	if b.ClientCount() != 0 {
		t.Error("closed broker should report 0 clients")
	}
	b.Publish(Notice{Type: "x"})
	if ch2 := b.Subscribe(); ch2 != nil {
		if _, ok := <-ch2; ok {
			t.Error("subscribe after close should return closed channel")
		}
	}
}

func TestServeHTTP_StreamsNotices(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/admin/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.ServeHTTP(rec, req)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	b.Publish(Notice{Type: "note.created", Data: map[string]string{"id": "n1"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "event: note.created\ndata: {\"id\":\"n1\"}\n\n") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestReplayToLateSubscriber(t *testing.T) {
	b := NewBroker(time.Minute, WithReplay(2))
	defer b.Close()

	observer := b.Subscribe()
	defer b.Unsubscribe(observer)
	for _, id := range []string{"n1", "n2", "n3"} {
		b.Publish(Notice{Type: "note.created", Data: map[string]string{"id": id}})
	}
	for i := 0; i < 3; i++ {
		select {
		case <-observer:
		case <-time.After(time.Second):
			t.Fatal("notice not delivered")
		}
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var got []string
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-time.After(time.Second):
			t.Fatalf("got %d replayed notices, want 2", len(got))
		}
	}
	if !strings.Contains(got[0], `"n2"`) || !strings.Contains(got[1], `"n3"`) {
		t.Errorf("replayed = %q", got)
	}
}
