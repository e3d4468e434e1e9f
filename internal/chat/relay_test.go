package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/completion"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/sse"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/testutil"
)

type event struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func decodeEvents(t *testing.T, body string) []event {
	t.Helper()
	evs, err := sse.NewDecoder(0).Feed([]byte(body))
	require.NoError(t, err)
	out := make([]event, 0, len(evs))
	for _, ev := range evs {
		var e event
		require.NoError(t, json.Unmarshal(ev.Data, &e), "payload %q", ev.Data)
		out = append(out, e)
	}
	return out
}

func newRelay(p completion.Provider, timeout time.Duration) *Relay {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return NewRelay(p, StaticContext("Anmol builds things."), WithConfig(cfg), WithLogger(testutil.QuietLogger()))
}

func runStream(t *testing.T, r *Relay, msg string) (State, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)
	state, err := r.Stream(context.Background(), msg, w)
	require.NoError(t, err)
	assert.True(t, w.Closed(), "writer closed after turn")
	return state, rec
}

func TestStream_TokensInOrderThenDone(t *testing.T) {
	p := &testutil.Scripted{Chunks: []string{"Hel", "lo, ", "world"}}
	state, rec := runStream(t, newRelay(p, time.Second), "hi")

	assert.Equal(t, StateCompleted, state)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	evs := decodeEvents(t, rec.Body.String())
	require.Len(t, evs, 4)
	assert.Equal(t, "Hel", evs[0].Content)
	assert.Equal(t, "lo, ", evs[1].Content)
	assert.Equal(t, "world", evs[2].Content)
	assert.True(t, evs[3].Done)
	assert.True(t, strings.HasSuffix(rec.Body.String(), "data: {\"done\":true}\n\n"))
}

func TestStream_ManyTokensKeepOrder(t *testing.T) {
	chunks := make([]string, 200)
	for i := range chunks {
		chunks[i] = string(rune('a' + i%26))
	}
	p := &testutil.Scripted{Chunks: chunks}
	state, rec := runStream(t, newRelay(p, 5*time.Second), "hi")
	require.Equal(t, StateCompleted, state)

	var got strings.Builder
	for _, ev := range decodeEvents(t, rec.Body.String()) {
		got.WriteString(ev.Content)
	}
	assert.Equal(t, strings.Join(chunks, ""), got.String())
}

func TestStream_TimeoutIsTerminal(t *testing.T) {
	p := &testutil.Scripted{
		Chunks:       []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		Delay:        40 * time.Millisecond,
		IgnoreCancel: true,
	}
	state, rec := runStream(t, newRelay(p, 100*time.Millisecond), "hi")
	assert.Equal(t, StateTimedOut, state)

	body := rec.Body.String()
	evs := decodeEvents(t, body)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, MsgStreamTimeout, last.Error)
	for _, ev := range evs {
		assert.False(t, ev.Done, "no done event after a timeout")
	}

	// The provider keeps producing; nothing more reaches the client.
	time.Sleep(200 * time.Millisecond)
	assert.Greater(t, p.Emitted(), len(evs)-1)
	assert.Equal(t, body, rec.Body.String())
}

func TestStream_UpstreamErrorsAreClassified(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"rate limit", &completion.APIError{Provider: "openai", Status: 429, Message: "slow down"}, MsgRateLimit},
		{"auth", &completion.APIError{Provider: "openai", Status: 401, Message: "Incorrect API key provided"}, MsgAuth},
		{"timeout text", errors.New("upstream timeout while reading"), MsgTimeout},
		{"other", errors.New("boom"), MsgGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &testutil.Scripted{Chunks: []string{"partial"}, Err: tc.err}
			state, rec := runStream(t, newRelay(p, time.Second), "hi")
			assert.Equal(t, StateErrored, state)

			evs := decodeEvents(t, rec.Body.String())
			require.Len(t, evs, 2)
			assert.Equal(t, "partial", evs[0].Content)
			assert.Equal(t, tc.want, evs[1].Error)
			assert.Empty(t, evs[1].Details, "raw upstream error hidden by default")
			assert.NotContains(t, rec.Body.String(), `"details"`)
		})
	}
}

func TestStream_ErrorDetailsWhenExposed(t *testing.T) {
	p := &testutil.Scripted{Err: errors.New("bad gateway from proxy.internal")}
	cfg := DefaultConfig()
	cfg.Timeout = time.Second
	cfg.ExposeDetails = true
	r := NewRelay(p, StaticContext("bio"), WithConfig(cfg), WithLogger(testutil.QuietLogger()))

	state, rec := runStream(t, r, "hi")
	assert.Equal(t, StateErrored, state)

	evs := decodeEvents(t, rec.Body.String())
	require.Len(t, evs, 1)
	assert.Equal(t, MsgGeneric, evs[0].Error)
	assert.Equal(t, p.Err.Error(), evs[0].Details)
}

func TestStream_ValidationBeforeHeaders(t *testing.T) {
	p := &testutil.Scripted{Chunks: []string{"x"}}
	r := newRelay(p, time.Second)

	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)

	state, err := r.Stream(context.Background(), "", w)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Equal(t, StateValidating, state)
	assert.False(t, w.Committed())
	assert.Equal(t, 0, p.Calls(), "provider never invoked")

	unconfigured := newRelay(nil, time.Second)
	_, err = unconfigured.Stream(context.Background(), "hi", w)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.False(t, w.Committed())
}

func TestStream_ClientDisconnect(t *testing.T) {
	p := &testutil.Scripted{Chunks: []string{"a", "b", "c"}, Delay: 50 * time.Millisecond}
	r := newRelay(p, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(70*time.Millisecond, cancel)

	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	require.NoError(t, err)
	state, err := r.Stream(ctx, "hi", w)
	require.NoError(t, err)
	assert.Equal(t, StateErrored, state)
	assert.True(t, w.Closed())
	for _, ev := range decodeEvents(t, rec.Body.String()) {
		assert.False(t, ev.Done)
	}
}

func TestStream_RequestParameters(t *testing.T) {
	p := &testutil.Scripted{Chunks: []string{"ok"}}
	runStream(t, newRelay(p, time.Second), "Where does he work?")

	req := p.LastRequest()
	assert.Equal(t, 800, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.Equal(t, "CONTEXT: ###\nAnmol builds things.\n###\n\nQUESTION: \"Where does he work?\"", req.User)
	assert.True(t, strings.HasPrefix(req.System, "You are Anmol Baruwal's personal AI assistant."))
	assert.Contains(t, req.System, DefaultResumeURL)
}

func TestAnswer(t *testing.T) {
	p := &testutil.Scripted{Chunks: []string{"He ", "builds ", "things."}}
	r := newRelay(p, time.Second)

	out, err := r.Answer(context.Background(), "what?")
	require.NoError(t, err)
	assert.Equal(t, "He builds things.", out)
	assert.Equal(t, 500, p.LastRequest().MaxTokens)
	assert.InDelta(t, 0.2, p.LastRequest().Temperature, 1e-9)
}

func TestAnswer_EmptyCompletionFallsBack(t *testing.T) {
	out, err := newRelay(&testutil.Scripted{}, time.Second).Answer(context.Background(), "what?")
	require.NoError(t, err)
	assert.Equal(t, MsgNoResponse, out)
}

func TestAnswer_Errors(t *testing.T) {
	_, err := newRelay(&testutil.Scripted{}, time.Second).Answer(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	_, err = newRelay(nil, time.Second).Answer(context.Background(), "hi")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	upstream := &completion.APIError{Provider: "openai", Status: 429}
	_, err = newRelay(&testutil.Scripted{Err: upstream}, time.Second).Answer(context.Background(), "hi")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, apperr.KindRateLimit, apperr.Classify(err))
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, CanTransition(StateInit, StateValidating))
	assert.True(t, CanTransition(StateStreaming, StateTimedOut))
	assert.False(t, CanTransition(StateCompleted, StateErrored))
	assert.False(t, CanTransition(StateTimedOut, StateCompleted))
	assert.False(t, CanTransition(StateInit, StateStreaming))

	assert.True(t, StateErrored.Terminal())
	assert.False(t, StateStreaming.Terminal())

	tr := &turn{state: StateCompleted}
	assert.Panics(t, func() { tr.to(StateErrored) })
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, MsgRateLimit, ErrorMessage(apperr.KindRateLimit))
	assert.Equal(t, MsgTimeout, ErrorMessage(apperr.KindTimeout))
	assert.Equal(t, MsgAuth, ErrorMessage(apperr.KindAuth))
	assert.Equal(t, MsgGeneric, ErrorMessage(apperr.KindUnreachable))
	assert.Equal(t, MsgGeneric, ErrorMessage(apperr.KindUnknown))
}
