package sse

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Notice is an event broadcast to admin subscribers.
type Notice struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const subscriberBuffer = 32

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithReplay keeps the last n notices and hands them to every new
// subscriber before live traffic. n is capped at the subscriber buffer.
func WithReplay(n int) BrokerOption {
	return func(b *Broker) {
		if n > subscriberBuffer {
			n = subscriberBuffer
		}
		if n > 0 {
			b.replay = n
		}
	}
}

// Broker fans notices out to connected admin clients.
//
// A single event loop owns the subscriber set and the replay ring; public
// methods talk to it over channels, so neither needs a mutex.
type Broker struct {
	keepAlive time.Duration
	replay    int

	joinCh   chan chan []byte
	leaveCh  chan chan []byte
	noticeCh chan Notice
	countCh  chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends a comment ping to every client each
// keepAlive interval.
func NewBroker(keepAlive time.Duration, opts ...BrokerOption) *Broker {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	b := &Broker{
		keepAlive: keepAlive,
		joinCh:    make(chan chan []byte),
		leaveCh:   make(chan chan []byte),
		noticeCh:  make(chan Notice, 64),
		countCh:   make(chan chan int),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	subs := make(map[chan []byte]struct{})
	var recent [][]byte

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	// Non-blocking: a subscriber whose buffer is full misses the frame.
	deliver := func(frame []byte) {
		for ch := range subs {
			select {
			case ch <- frame:
			default:
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.joinCh:
			subs[ch] = struct{}{}
			for _, frame := range recent {
				ch <- frame
			}

		case ch := <-b.leaveCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case n := <-b.noticeCh:
			data, err := json.Marshal(n.Data)
			if err != nil {
				continue
			}
			frame := Frame(n.Type, data)
			if b.replay > 0 {
				recent = append(recent, frame)
				if len(recent) > b.replay {
					recent = recent[len(recent)-b.replay:]
				}
			}
			deliver(frame)

		case <-ping.C:
			deliver([]byte(": ping\n\n"))

		case reply := <-b.countCh:
			reply <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed on
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case b.countCh <- reply:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues a notice for every connected client.
func (b *Broker) Publish(n Notice) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noticeCh <- n:
	case <-b.stopped:
	}
}

// ServeHTTP streams notices to one admin client until it disconnects or the
// broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw, err := NewWriter(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sw.Open()
	defer sw.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if err := sw.WriteFrame(frame); err != nil {
				return
			}
		}
	}
}
